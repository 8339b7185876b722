// Package model defines the records that storysync keeps on the device and in
// the remote record store.
//
// # Records
//
// Two record kinds are synchronized:
//
//   - Story: generated story text plus optional audio metadata
//   - ChildProfile: the child a story is written for
//
// Both are plain data. The only behaviour attached to them is validation and
// the accessors needed by generic sync code (RecordID, Timestamp, Kind).
//
// # Identity and timestamps
//
// The id is assigned once, when the record is created, and is the join key
// between the local and remote replicas. CreatedAt is the only conflict
// resolution signal: the replica holding the larger CreatedAt wins.
//
// In-place edits of the audio fields or the play position do not bump
// CreatedAt. Two replicas that differ only in those fields compare as equal
// and are left alone by a full sync.
//
// # JSON layout
//
// Records serialize with camelCase keys and omit absent optional fields:
//
//	{
//	  "id": "6f1c...",
//	  "title": "The Brave Little Fox",
//	  "content": "Once upon a time...",
//	  "theme": "courage",
//	  "childName": "Mia",
//	  "createdAt": "2026-01-10T07:36:29Z",
//	  "audioURL": "file:///stories/6f1c.m4a",
//	  "audioDuration": 182.5
//	}
//
// Unknown keys are ignored on read so older builds can load files written by
// newer ones.
package model

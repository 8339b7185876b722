package sync_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/talekeeper/storysync/internal/localstore"
	"github.com/talekeeper/storysync/internal/remote"
	"github.com/talekeeper/storysync/internal/sync"
)

// This example demonstrates a user-triggered full sync.
// Note: This is for documentation only and won't run as a test.
func ExampleCoordinator_FullSync() {
	local, err := localstore.Open("/var/lib/storysync", nil)
	if err != nil {
		log.Fatal(err)
	}

	rs, err := remote.NewRedisStore(remote.RedisConfig{URL: "redis://localhost:6379/0"})
	if err != nil {
		log.Fatal(err)
	}
	defer rs.Close()

	coord, err := sync.New(sync.Config{
		Local:  local,
		Remote: rs,
		Status: sync.StatusFunc(func() remote.Status {
			return rs.AccountStatus(context.Background())
		}),
	})
	if err != nil {
		log.Fatal(err)
	}

	res, err := coord.FullSync(context.Background())
	switch {
	case errors.Is(err, sync.ErrSyncUnavailable):
		fmt.Println("Remote store not available, try again later")
	case err != nil:
		log.Fatal(err)
	default:
		fmt.Printf("Pushed %d, pulled %d\n", res.Pushed(), res.Pulled())
	}
}

// This example demonstrates deleting a story on both replicas.
func ExampleCoordinator_DeleteStory() {
	var coord *sync.Coordinator // constructed as in the FullSync example

	err := coord.DeleteStory(context.Background(), "3f1c2d8e")
	if errors.Is(err, sync.ErrSyncUnavailable) {
		fmt.Println("Deleted on this device; the remote copy will come back on the next sync")
	}
}

package webhooks_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zenithhq/zenith/internal/infra/db"
	"github.com/zenithhq/zenith/internal/webhooks"
)

type dbFactory struct {
	name  string
	newDB func(t *testing.T) *db.DB
}

var drivers []dbFactory

func TestMain(m *testing.M) {
	ctx := context.Background()

	// Start PostgreSQL container.
	pgConnStr, pgContainer, err := startPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	// Register drivers.
	drivers = append(drivers, dbFactory{
		name:  "sqlite",
		newDB: newSQLiteDB,
	})
	drivers = append(drivers, dbFactory{
		name:  "postgres",
		newDB: newPostgresDB(pgConnStr),
	})

	code := m.Run()

	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
		}
	}

	os.Exit(code)
}

func testWebhook(projectID uuid.UUID, events ...string) *webhooks.Webhook {
	now := time.Now().Unix()
	return &webhooks.Webhook{
		ID:        uuid.New(),
		ProjectID: projectID,
		URL:       "https://receiver.example.com/hooks",
		Secret:    "5a0c169bbd4917ba9a1a7aa63173b8b7b0d8f96f388dd7711741b531ab4a5c36",
		Events:    events,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

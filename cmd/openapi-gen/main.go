package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/zenithhq/zenith/internal/openapi"
	"github.com/zenithhq/zenith/internal/rbac"
	"github.com/zenithhq/zenith/internal/webhooks"
)

func main() {
	reflector := openapi.NewReflector()

	// Register all API schemas
	webhooks.RegisterSubscriptionsSchema(reflector)
	webhooks.RegisterSubscriptionSchema(reflector)
	webhooks.RegisterLogsSchema(reflector)
	webhooks.RegisterEventsSchema(reflector)
	rbac.RegisterCheckSchema(reflector)
	rbac.RegisterRolesSchema(reflector)
	rbac.RegisterPermissionsSchema(reflector)

	data, err := json.MarshalIndent(reflector.Spec, "", "  ")
	if err != nil {
		log.Fatal(err)
	}

	if err := os.WriteFile("openapi.json", data, 0644); err != nil {
		log.Fatal(err)
	}

	log.Println("Generated openapi.json")
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"buddychat/backend/internal/chathub"
	"buddychat/backend/internal/config"
	"buddychat/backend/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.EphemeralStore == config.BackendMemory || cfg.DurableStore == config.BackendMemory {
		log.Println("Warning: a memory store is configured; the admin CLI only sees its own empty process")
	}

	ctx := context.Background()
	stores, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open stores: %v", err)
	}
	defer stores.Close()

	hub := chathub.NewManagerService(stores.Ephemeral, stores.Durable)

	if err := run(ctx, hub, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func usage() {
	fmt.Println("Usage: admin <command> [args]")
	fmt.Println("  waiting                  list the waiting pool")
	fmt.Println("  transcript <session_id>  print a session transcript")
	fmt.Println("  saved <user_id>          print a user's saved chats")
	fmt.Println("  requests <user_id>       list pending friend requests to a user")
	fmt.Println("  kick <user_id>           remove a user from the waiting pool")
}

func run(ctx context.Context, hub *chathub.ManagerService, command string, args []string) error {
	needArg := func(name string) (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("usage: admin %s <%s>", command, name)
		}
		return args[0], nil
	}

	switch command {
	case "waiting":
		waiting, err := hub.Registry.Waiting(ctx)
		if err != nil {
			return err
		}
		return printJSON(waiting)
	case "transcript":
		sessionID, err := needArg("session_id")
		if err != nil {
			return err
		}
		session, err := hub.Sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return fmt.Errorf("session %s not found", sessionID)
		}
		return printJSON(session)
	case "saved":
		userID, err := needArg("user_id")
		if err != nil {
			return err
		}
		return printJSON(hub.ListSavedChats(ctx, userID))
	case "requests":
		userID, err := needArg("user_id")
		if err != nil {
			return err
		}
		pending, err := hub.Friends.Incoming(ctx, userID)
		if err != nil {
			return err
		}
		return printJSON(pending)
	case "kick":
		userID, err := needArg("user_id")
		if err != nil {
			return err
		}
		hub.Leave(ctx, userID)
		fmt.Printf("User %s has been removed from the waiting pool.\n", userID)
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

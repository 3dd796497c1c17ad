// nimchat - a terminal chat client and gateway for NVIDIA NIM.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	chatctl "github.com/jeranaias/nimchat/internal/chat"
	"github.com/jeranaias/nimchat/internal/config"
	"github.com/jeranaias/nimchat/internal/gateway"
	"github.com/jeranaias/nimchat/internal/nim"
	"github.com/jeranaias/nimchat/internal/server"
	"github.com/jeranaias/nimchat/internal/storage"
	uichat "github.com/jeranaias/nimchat/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "", "tui":
		runTUI()
	case "serve":
		runServe()
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// TUI
// =============================================================================

// runTUI starts the interactive chat client.
func runTUI() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	storePath := cfg.Storage.Path
	if storePath == "" {
		storePath, err = storage.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving storage path: %v\n", err)
			os.Exit(1)
		}
	}
	store, err := storage.Open(storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening conversation store: %v\n", err)
		os.Exit(1)
	}

	backend := gateway.NewClient(cfg.Client.BackendURL)
	controller := chatctl.NewController(store, backend)

	p := tea.NewProgram(
		uichat.New(controller, store),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running nimchat: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// GATEWAY SERVER
// =============================================================================

// runServe starts the gateway server and blocks until interrupted.
func runServe() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Server.APIKey == "" {
		fmt.Fprintln(os.Stderr, "NVIDIA_API_KEY is not set. Set it in the environment or config file.")
		os.Exit(1)
	}

	upstream := nim.NewClient(cfg.Server.APIKey).WithBaseURL(cfg.Server.UpstreamURL)
	srv := server.NewServer(cfg.Server.Port, upstream)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	fmt.Printf("NIM server is running on http://127.0.0.1:%d\n", cfg.Server.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		fmt.Printf("\nReceived %v, shutting down...\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
			os.Exit(1)
		}
	}
}

// =============================================================================
// HELP
// =============================================================================

func printVersion() {
	fmt.Printf("nimchat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}

func printUsage() {
	fmt.Println(`nimchat - terminal chat client and gateway for NVIDIA NIM

Usage:
  nimchat            Start the interactive chat client
  nimchat serve      Start the gateway server
  nimchat version    Print version information
  nimchat help       Show this help

Environment:
  NVIDIA_API_KEY        NVIDIA API key (required for serve)
  NIMCHAT_PORT          Gateway port (default 3001)
  NIMCHAT_UPSTREAM_URL  NVIDIA NIM API base URL
  NIMCHAT_BACKEND_URL   Gateway URL the client talks to
  NIMCHAT_STORAGE_PATH  Conversation storage file`)
}

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/corv87/lanCaller/pkg/client"
	"github.com/corv87/lanCaller/pkg/reconcile"
	"github.com/corv87/lanCaller/pkg/ui"
)

func defaultStateDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".lancaller"
	}
	return filepath.Join(dir, "lancaller")
}

// logWriter opens the debug log file. The TUI owns stdout, so when the file
// cannot be opened logging is disabled rather than scribbled over the UI.
func logWriter(path string) (io.Writer, func()) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s, logging disabled: %v\n", path, err)
		return io.Discard, func() {}
	}
	return f, func() { f.Close() }
}

func main() {
	out, closeLog := logWriter("debug.log")
	defer closeLog()
	log.SetOutput(out)
	slog.SetDefault(slog.New(slog.NewTextHandler(out, nil)))

	var (
		name     string
		server   string
		port     int
		stateDir string
	)

	cmd := &cobra.Command{
		Use:   "lancaller",
		Short: "Point-to-point voice calls between peers on a local network",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				host, _ := os.Hostname()
				name = host
			}
			app, err := client.NewApp(cmd.Context(), client.Config{
				SelfID:      uuid.New().String(),
				DisplayName: name,
				ServerURL:   server,
				Port:        port,
				StateDir:    stateDir,
			})
			if err != nil {
				return err
			}

			p := tea.NewProgram(ui.NewModel(app))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("failed to run ui: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&name, "name", "", "Display name announced to peers")
	cmd.PersistentFlags().StringVar(&server, "server", "ws://localhost:8080/ws", "Signaling server URL")
	cmd.PersistentFlags().IntVar(&port, "port", 9860, "Port announced over mDNS")
	cmd.PersistentFlags().StringVar(&stateDir, "state-dir", defaultStateDir(), "Directory for cross-process call state")

	var declinePeer string
	declineCmd := &cobra.Command{
		Use:    "decline",
		Short:  "Record a decline for a ringing call from another process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// This runs in the notification-action execution context, which
			// cannot reach the live session manager. The marker is picked up
			// by the reconciler on next resume.
			store := reconcile.NewMarkerStore(stateDir)
			return store.Write(reconcile.Marker{RemoteParticipantID: declinePeer})
		},
	}
	declineCmd.Flags().StringVar(&declinePeer, "peer", "", "Participant id of the caller being declined")
	_ = declineCmd.MarkFlagRequired("peer")
	cmd.AddCommand(declineCmd)

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

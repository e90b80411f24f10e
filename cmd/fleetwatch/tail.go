package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/fleetwatch/internal/config"
	"github.com/rickgao/fleetwatch/internal/connection"
	"github.com/rickgao/fleetwatch/internal/events"
	"github.com/rickgao/fleetwatch/internal/model"
	"github.com/rickgao/fleetwatch/internal/version"
)

var (
	tailVerbose    bool
	tailTypes      []string
	tailStatsEvery time.Duration

	tailCmd = &cobra.Command{
		Use:   "tail",
		Short: "Stream status channel frames to stdout",
		Example: `  fleetwatch tail --config configs/fleetwatch.local.yaml
  fleetwatch tail --type agent_status_change --type meeting_event -v`,
		Args: cobra.NoArgs,
		RunE: runTail,
	}
)

func init() {
	tailCmd.Flags().BoolVarP(&tailVerbose, "verbose", "v", false, "print full frame JSON")
	tailCmd.Flags().StringSliceVar(&tailTypes, "type", nil, "only print frames of these types")
	tailCmd.Flags().DurationVar(&tailStatsEvery, "stats", 10*time.Second, "interval between stats lines (0 disables)")
	tailCmd.Flags().StringVar(&tokenOverride, "token", "", "auth token (overrides channel.token)")

	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	mcfg, err := cfg.ManagerConfig()
	if err != nil {
		return fmt.Errorf("channel config: %w", err)
	}
	token := cfg.Channel.Token
	if tokenOverride != "" {
		token = tokenOverride
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcfg := cfg.TransportConfig()
	tcfg.UserAgent = version.UserAgent()
	m := connection.NewManager(mcfg,
		connection.NewWebSocketTransport(tcfg, logger),
		connection.WithLogger(logger),
		connection.WithReporter(connection.LogReporter(logger)),
	)
	defer m.Close()

	p := newFramePrinter(cmd.OutOrStdout(), tailTypes, tailVerbose)
	m.Events().OnAny(p.handle)

	m.Connect(token)
	logger.Info("streaming started - press Ctrl+C to stop")

	var tick <-chan time.Time
	if tailStatsEvery > 0 {
		ticker := time.NewTicker(tailStatsEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down...", "printed", p.printed.Load())
			return nil
		case <-tick:
			s := m.Stats()
			logger.Info("stats",
				"state", s.State.String(),
				"session_id", s.SessionID,
				"reconnect_attempts", s.ReconnectAttempts,
				"printed", p.printed.Load(),
				"queued", s.Queued,
			)
		}
	}
}

// framePrinter writes server frames one per line. Heartbeat frames are
// skipped unless asked for by type.
type framePrinter struct {
	w       io.Writer
	types   map[string]bool
	verbose bool
	printed atomic.Int64
}

func newFramePrinter(w io.Writer, types []string, verbose bool) *framePrinter {
	p := &framePrinter{w: w, verbose: verbose}
	if len(types) > 0 {
		p.types = make(map[string]bool, len(types))
		for _, t := range types {
			p.types[t] = true
		}
	}
	return p
}

func (p *framePrinter) handle(ev events.Event) {
	var env connection.Envelope
	switch pl := ev.Payload.(type) {
	case connection.Envelope:
		env = pl
	case connection.ErrorEvent:
		// Server "error" frames arrive wrapped.
		if pl.Envelope == nil {
			return
		}
		env = *pl.Envelope
	default:
		return
	}
	if p.types != nil {
		if !p.types[env.Type] {
			return
		}
	} else if env.Type == connection.TypePing || env.Type == connection.TypePong {
		return
	}

	var (
		data []byte
		err  error
	)
	if p.verbose {
		data, err = json.MarshalIndent(env, "", "  ")
	} else {
		data, err = json.Marshal(env)
	}
	if err != nil {
		return
	}

	label := "[" + strings.ToUpper(env.Type) + "]"
	if f, err := model.Decode(env); err == nil && f.AgentRef() != "" {
		label += " agent=" + f.AgentRef()
	}
	fmt.Fprintf(p.w, "%s %s\n", label, data)
	p.printed.Add(1)
}

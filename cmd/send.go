package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"playground/config"
	"playground/logx"
	"playground/mcp"
	"playground/model"
	"playground/playground"
	"playground/provider"
	"playground/session"
	"playground/storage"
)

// maxToolRounds bounds --run-tools when a model keeps asking for tools.
const maxToolRounds = 8

type sendOptions struct {
	models      []string
	system      string
	config      string
	tools       string
	mcp         bool
	runTools    bool
	noStream    bool
	json        bool
	n           int
	temperature float64
	timeout     time.Duration
}

var sendOpts sendOptions

var sendCmd = &cobra.Command{
	Use:   "send [prompt]",
	Short: "Send one prompt to one or more models and print the answers",
	Long: `Send one user message to every model given with --model, in parallel,
and print each answer. The prompt is read from stdin when no argument is given.

Exits with status 2 when any model failed.`,
	Example: `  playground send -m openai/gpt-4o-mini -m anthropic/claude-sonnet-4-5 "Name a prime"
  echo "Summarize" | playground send --config summarizer@2
  playground send --mcp --run-tools "What files are in /tmp?"`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	f := sendCmd.Flags()
	f.StringArrayVarP(&sendOpts.models, "model", "m", nil, "Model as provider/model (repeatable, default: the configured default)")
	f.StringVarP(&sendOpts.system, "system", "s", "", "System prompt")
	f.StringVarP(&sendOpts.config, "config", "c", "", "Start from a saved config, name or name@version")
	f.StringVar(&sendOpts.tools, "tools", "", "JSON file with tool definitions")
	f.BoolVar(&sendOpts.mcp, "mcp", false, "Offer the tools of the configured MCP servers")
	f.BoolVar(&sendOpts.runTools, "run-tools", false, "Answer tool calls with the MCP servers until the models stop asking (implies --mcp)")
	f.BoolVar(&sendOpts.noStream, "no-stream", false, "Request complete answers instead of streams")
	f.BoolVar(&sendOpts.json, "json", false, "Print results as JSON")
	f.IntVarP(&sendOpts.n, "choices", "n", 0, "Number of choices per model")
	f.Float64VarP(&sendOpts.temperature, "temperature", "t", -1, "Sampling temperature")
	f.DurationVar(&sendOpts.timeout, "timeout", 2*time.Minute, "Give up after this long (0 for no limit)")
}

// sendResult is what send prints for one model.
type sendResult struct {
	Model     string           `json:"model"`
	Content   string           `json:"content,omitempty"`
	Choices   []string         `json:"choices,omitempty"`
	ToolCalls []model.ToolCall `json:"tool_calls,omitempty"`
	Usage     *model.Usage     `json:"usage,omitempty"`
	LatencyMS int64            `json:"latency_ms,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// failureLog is a playground.Notifier remembering the last error per
// session.
type failureLog struct {
	mu     sync.Mutex
	errors map[int]*playground.Error
}

func (f *failureLog) Notify(index int, err *playground.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errors == nil {
		f.errors = make(map[int]*playground.Error)
	}
	f.errors[index] = err
}

func (f *failureLog) get(index int) *playground.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors[index]
}

func (f *failureLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errors)
}

func runSend(cmd *cobra.Command, args []string) error {
	opts := sendOpts

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return errors.New("nothing to send: pass a prompt or pipe one on stdin")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.InitLogging(false); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	sessions, err := sendSessions(ctx, cfg, opts)
	if err != nil {
		return err
	}

	var defs []model.ToolDefinition
	if opts.tools != "" {
		if defs, err = mcp.LoadToolsFile(opts.tools); err != nil {
			return err
		}
	}
	var tools *mcp.Manager
	if opts.mcp || opts.runTools {
		if tools = startTools(ctx, cfg); tools == nil {
			return errors.New("no MCP server with tools is running; add [[mcp_servers]] to config.toml")
		}
		defer tools.Shutdown(context.Background())
		defs = append(defs, tools.Definitions()...)
	}
	for _, st := range sessions {
		if len(defs) > 0 {
			st.Params.Tools = append(st.Params.Tools, defs...)
		}
	}

	if opts.noStream {
		cfg.Streaming = false
	}
	failures := &failureLog{}
	p := newPlayground(cfg, session.NewStore(sessions...), newTransport(cfg), failures)

	// Transport failures were already reported per session and count
	// towards the exit code below.
	if err := p.SendMessage(ctx, model.RoleUser, prompt); err != nil && !errors.Is(err, playground.ErrTransport) {
		return err
	}
	if opts.runTools {
		if err := runToolRounds(ctx, p, tools); err != nil {
			return err
		}
	}

	// Cancelled units end silently, so an interrupt has to be reported here.
	if errors.Is(ctx.Err(), context.Canceled) {
		return ExitError{Code: 130, Err: fmt.Errorf("interrupted: %w", ctx.Err())}
	}

	results := collectResults(p.Sessions(), failures)
	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		printResults(out, results)
	}

	if n := failures.count(); n > 0 {
		return ExitError{Code: 2, Err: fmt.Errorf("%d of %d models failed", n, len(results))}
	}
	return nil
}

// sendSessions builds one session per requested model, all starting from the
// same config, system prompt and parameters.
func sendSessions(ctx context.Context, cfg *config.Config, opts sendOptions) ([]*model.PlaygroundState, error) {
	var base *model.PlaygroundState
	if opts.config != "" {
		name, version, err := storage.ParseConfigRef(opts.config)
		if err != nil {
			return nil, err
		}
		store, err := openConfigStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		c, err := store.Get(ctx, name, version)
		if err != nil {
			return nil, err
		}
		base = c.NewSession()
	} else {
		base = newSession(cfg.DefaultModel, cfg.DefaultSystemPrompt)
	}

	if opts.system != "" {
		base.Messages = []model.Message{{Role: model.RoleSystem, Content: opts.system}}
	}
	if opts.temperature >= 0 {
		base.Params.Temperature = opts.temperature
	}
	if opts.n > 0 {
		base.Params.N = opts.n
	}

	models := opts.models
	if len(models) == 0 {
		models = []string{base.Model}
	}
	sessions := make([]*model.PlaygroundState, 0, len(models))
	for _, id := range models {
		if _, _, ok := provider.SplitModelID(id); !ok {
			return nil, fmt.Errorf("invalid model %q: expected provider/model", id)
		}
		st := base.Clone()
		st.ID = uuid.NewString()
		st.Model = id
		sessions = append(sessions, st)
	}
	return sessions, nil
}

// runToolRounds answers pending tool calls in every session, in parallel,
// until no session asks for more.
func runToolRounds(ctx context.Context, p *playground.Playground, tools *mcp.Manager) error {
	for round := 0; round < maxToolRounds; round++ {
		var (
			g       errgroup.Group
			pending int
		)
		for i, st := range p.Sessions() {
			c, ok := st.SelectedChoice()
			if !ok || len(c.Message.ToolCalls) == 0 {
				continue
			}
			pending++
			g.Go(func() error {
				return p.RunToolCalls(ctx, i, tools)
			})
		}
		if pending == 0 {
			return nil
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	logx.Warn().Int("rounds", maxToolRounds).Msg("models still asking for tools, giving up")
	return nil
}

func collectResults(sessions []*model.PlaygroundState, failures *failureLog) []sendResult {
	results := make([]sendResult, 0, len(sessions))
	for i, st := range sessions {
		r := sendResult{Model: st.Model}
		if e := failures.get(i); e != nil {
			r.Error = e.Error()
			if e.Kind == playground.KindMissingCredential {
				r.Error = fmt.Sprintf("%s is not set; run: playground credentials set %s", e.APIKeyName, e.APIKeyName)
			}
		}
		if c, ok := st.SelectedChoice(); ok {
			r.Content = c.Message.Content
			r.ToolCalls = c.Message.ToolCalls
		}
		if st.Output != nil && len(st.Output.Choices) > 1 {
			for _, c := range st.Output.Choices {
				r.Choices = append(r.Choices, c.Message.Content)
			}
		}
		if st.Summary != nil {
			usage := st.Summary.Usage
			r.Usage = &usage
			r.LatencyMS = st.Summary.LatencyMS
		}
		results = append(results, r)
	}
	return results
}

func printResults(w io.Writer, results []sendResult) {
	for i, r := range results {
		if len(results) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, titleStyle.Render(r.Model))
		}
		if r.Error != "" {
			fmt.Fprintf(w, "%s %s\n", failStyle.Render("✗"), r.Error)
			continue
		}
		switch {
		case len(r.Choices) > 1:
			for j, c := range r.Choices {
				fmt.Fprintf(w, "%s\n%s\n", dimStyle.Render(fmt.Sprintf("[%d]", j+1)), c)
			}
		case r.Content != "":
			fmt.Fprintln(w, r.Content)
		}
		for _, tc := range r.ToolCalls {
			fmt.Fprintf(w, "%s %s(%s) %s\n", warnStyle.Render("→"), tc.Function.Name, tc.Function.Arguments, dimStyle.Render(tc.ID))
		}
		if r.Usage != nil && r.Usage.TotalTokens > 0 {
			fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d tokens, %d ms", r.Usage.TotalTokens, r.LatencyMS)))
		}
	}
}

package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"playground/mcp"
	"playground/model"
	"playground/playground"
	"playground/provider"
	"playground/session"
	"playground/storage"
)

var errUsage = errors.New("usage")

// command is a parsed slash command: "/temp 0.2" gives {name: "temp",
// args: ["0.2"], rest: "0.2"}.
type command struct {
	name string
	args []string
	rest string
}

func parseCommand(input string) command {
	input = strings.TrimPrefix(strings.TrimSpace(input), "/")
	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)
	return command{name: strings.ToLower(name), args: strings.Fields(rest), rest: rest}
}

func (c command) int(i int) (int, error) {
	if i >= len(c.args) {
		return 0, fmt.Errorf("%w: /%s needs %d argument(s)", errUsage, c.name, i+1)
	}
	return strconv.Atoi(c.args[i])
}

func (c command) float(i int) (float64, error) {
	if i >= len(c.args) {
		return 0, fmt.Errorf("%w: /%s needs %d argument(s)", errUsage, c.name, i+1)
	}
	return strconv.ParseFloat(c.args[i], 64)
}

// runCommand executes a slash command against the focused session. Message
// and choice numbers are 1-based, as displayed.
func (a AppView) runCommand(input string) (tea.Model, tea.Cmd) {
	c := parseCommand(input)
	p := a.opts.Playground
	idx := a.focused
	st := a.focusedSession()
	if st == nil {
		return a.fail(errors.New("no session"))
	}

	var err error
	switch c.name {
	case "help":
		a.showHelp = true
		return a, nil

	case "model":
		if c.rest == "" {
			return a.openSelector()
		}
		if _, _, ok := provider.SplitModelID(c.rest); !ok {
			err = a.unknownModel(c.rest)
			break
		}
		err = p.SetModel(idx, c.rest)

	case "role":
		role, perr := model.ParseRole(c.rest)
		if perr != nil {
			err = perr
			break
		}
		a.inputRole = role
		a.status, a.statusErr = "input role: "+string(role), false
		return a, nil

	case "system":
		err = a.setSystemPrompt(idx, st, c.rest)

	case "temp", "temperature":
		var v float64
		if v, err = c.float(0); err == nil {
			err = p.SetParams(idx, func(pr model.Params) model.Params { pr.Temperature = v; return pr })
		}

	case "top_p":
		var v float64
		if v, err = c.float(0); err == nil {
			err = p.SetParams(idx, func(pr model.Params) model.Params { pr.TopP = v; return pr })
		}

	case "max":
		var v int
		if v, err = c.int(0); err == nil {
			err = p.SetParams(idx, func(pr model.Params) model.Params { pr.MaxTokens = v; return pr })
		}

	case "n":
		var v int
		if v, err = c.int(0); err == nil && v < 1 {
			err = fmt.Errorf("n must be at least 1")
		}
		if err == nil {
			err = p.SetParams(idx, func(pr model.Params) model.Params { pr.N = v; return pr })
		}

	case "stop":
		err = p.SetParams(idx, func(pr model.Params) model.Params { pr.StopSequences = c.args; return pr })

	case "format":
		f := model.ResponseFormat(c.rest)
		switch f {
		case model.ResponseFormatText, model.ResponseFormatJSONObject, model.ResponseFormatJSONSchema:
			err = p.SetParams(idx, func(pr model.Params) model.Params { pr.ResponseFormat = f; return pr })
		default:
			err = fmt.Errorf("unknown format %q", c.rest)
		}

	case "choice":
		var n int
		if n, err = c.int(0); err == nil {
			err = p.SelectChoice(idx, n-1)
		}

	case "retry":
		n := len(st.Messages)
		if len(c.args) > 0 {
			if n, err = c.int(0); err != nil {
				break
			}
		}
		a.clearErrors([]int{idx})
		return a, a.retryCmd(idx, n-1)

	case "continue":
		n := st.SelectedChoiceIndex + 1
		if len(c.args) > 0 {
			if n, err = c.int(0); err != nil {
				break
			}
		}
		a.clearErrors([]int{idx})
		return a, a.retryChoiceCmd(idx, n-1)

	case "edit":
		var n int
		if n, err = c.int(0); err == nil {
			_, text, _ := strings.Cut(c.rest, " ")
			err = p.EditMessage(idx, n-1, strings.TrimSpace(text))
		}

	case "edit-choice":
		var n int
		if n, err = c.int(0); err == nil {
			_, text, _ := strings.Cut(c.rest, " ")
			err = p.EditChoice(idx, n-1, strings.TrimSpace(text))
		}

	case "delete":
		var n int
		if n, err = c.int(0); err == nil {
			err = p.DeleteMessage(idx, n-1)
		}

	case "delete-choice":
		var n int
		if n, err = c.int(0); err == nil {
			err = p.DeleteChoice(idx, n-1)
		}

	case "add":
		role, perr := model.ParseRole(firstArg(c))
		if perr != nil {
			err = perr
			break
		}
		_, text, _ := strings.Cut(c.rest, " ")
		err = p.AddMessage(idx, role, strings.TrimSpace(text))

	case "tool":
		if len(c.args) < 2 {
			err = fmt.Errorf("%w: /tool <call id> <result>", errUsage)
			break
		}
		_, text, _ := strings.Cut(c.rest, " ")
		a.clearErrors([]int{idx})
		return a, a.toolResultCmd(idx, c.args[0], strings.TrimSpace(text))

	case "tools":
		err = a.loadTools(idx, c.rest)

	case "save":
		var saved storage.ModelConfig
		if saved, err = a.saveConfig(st, c.rest); err == nil {
			a.status, a.statusErr = fmt.Sprintf("saved %s v%d", saved.Name, saved.Version), false
			return a, nil
		}

	case "load":
		err = a.loadConfig(c.rest)

	case "ping":
		return a, a.pingCmd(c.rest)

	default:
		err = fmt.Errorf("unknown command /%s (F1 for help)", c.name)
	}

	if err != nil {
		return a.fail(err)
	}
	return a, nil
}

func firstArg(c command) string {
	if len(c.args) == 0 {
		return ""
	}
	return c.args[0]
}

func (a AppView) unknownModel(id string) error {
	if s := provider.SuggestModels(id, a.models, 3); len(s) > 0 {
		return fmt.Errorf("model ids look like provider/model; did you mean %s?", strings.Join(s, ", "))
	}
	return fmt.Errorf("model ids look like provider/model, got %q", id)
}

// setSystemPrompt replaces the leading system message, adds one when there
// is none, or removes it when text is empty.
func (a AppView) setSystemPrompt(idx int, st *model.PlaygroundState, text string) error {
	msgs := model.CloneMessages(st.Messages)
	hasSystem := len(msgs) > 0 && msgs[0].Role == model.RoleSystem
	switch {
	case text == "" && hasSystem:
		msgs = msgs[1:]
	case text == "":
		return nil
	case hasSystem:
		msgs[0].Content = text
	default:
		msgs = append([]model.Message{{Role: model.RoleSystem, Content: text}}, msgs...)
	}
	return a.setMessages(idx, msgs)
}

func (a AppView) setMessages(idx int, msgs []model.Message) error {
	return playground.SetField(a.opts.Playground, idx, session.Messages, msgs)
}

// loadTools attaches tool definitions to a session: from a JSON file, from
// the running MCP servers ("/tools mcp"), or none ("/tools off").
func (a AppView) loadTools(idx int, arg string) error {
	var defs []model.ToolDefinition
	switch arg {
	case "", "off":
	case "mcp":
		if a.opts.Tools == nil {
			return errors.New("no MCP servers configured")
		}
		defs = a.opts.Tools.Definitions()
	default:
		var err error
		if defs, err = mcp.LoadToolsFile(arg); err != nil {
			return err
		}
	}
	return a.opts.Playground.SetParams(idx, func(pr model.Params) model.Params {
		pr.Tools = defs
		return pr
	})
}

func (a AppView) saveConfig(st *model.PlaygroundState, name string) (storage.ModelConfig, error) {
	if a.opts.Configs == nil {
		return storage.ModelConfig{}, errors.New("no config store")
	}
	return a.opts.Configs.Save(a.ctx, storage.ConfigFromSession(name, st))
}

// loadConfig opens a new session seeded from "name" or "name@version".
func (a AppView) loadConfig(ref string) error {
	if a.opts.Configs == nil {
		return errors.New("no config store")
	}
	name, version, err := storage.ParseConfigRef(ref)
	if err != nil {
		return err
	}
	c, err := a.opts.Configs.Get(a.ctx, name, version)
	if err != nil {
		return err
	}
	a.opts.Playground.Store().Append(c.NewSession())
	return nil
}

func (a AppView) pingCmd(providerID string) tea.Cmd {
	if providerID == "" {
		st := a.focusedSession()
		pt, _, _ := provider.SplitModelID(st.Model)
		providerID = string(pt)
	}
	cfg := a.opts.Config
	baseURL := ""
	for _, p := range cfg.Providers {
		if p.ID == providerID {
			baseURL = p.BaseURL
		}
	}
	apiKey := cfg.APIKey(provider.CredentialName(provider.MapProviderIDToType(providerID)))
	return provider.PingProvider(providerID, baseURL, apiKey)
}

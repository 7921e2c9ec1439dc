package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/combat-engine/pkg/combat"
	"github.com/jwebster45206/combat-engine/pkg/combatant"
	"github.com/jwebster45206/combat-engine/pkg/encounter"
)

type uiState int

const (
	stateSetup uiState = iota
	stateCombat
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	logStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	metaStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// ConsoleUI is the bubbletea model for the combat console.
type ConsoleUI struct {
	cfg    *ConsoleConfig
	client *http.Client

	state uiState
	ready bool

	// Setup modal
	templates      []string
	templateCursor int
	setupErr       string

	// Combat view
	enc          *encounter.Encounter
	logLines     []string
	logViewport  viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model

	sseEvents chan SSEEvent
	sseCancel context.CancelFunc

	showQuitModal bool
	width         int
	height        int
}

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) *ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = "Type a command (help for a list)..."
	ta.Focus()
	ta.Prompt = "> "
	ta.CharLimit = 200
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	return &ConsoleUI{
		cfg:       cfg,
		client:    client,
		state:     stateSetup,
		textarea:  ta,
		sseEvents: make(chan SSEEvent, 16),
	}
}

// Messages

type templatesMsg struct {
	templates []string
	err       error
}

type encounterCreatedMsg struct {
	enc *encounter.Encounter
	err error
}

type actionMsg struct {
	label  string
	body   []byte
	enc    *encounter.Encounter
	err    error
	silent bool
}

type sseMsg SSEEvent

type sseClosedMsg struct {
	err error
}

func (ui *ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, ui.fetchTemplates())
}

func (ui *ConsoleUI) fetchTemplates() tea.Cmd {
	return func() tea.Msg {
		templates, err := listTemplates(ui.client, ui.cfg.APIBaseURL)
		return templatesMsg{templates: templates, err: err}
	}
}

// createEncounterCmd builds an encounter with a default party of one
// PC against two of the selected monster template.
func (ui *ConsoleUI) createEncounterCmd(template string) tea.Cmd {
	return func() tea.Msg {
		req := createEncounterRequest{
			Name: fmt.Sprintf("Skirmish vs %s", template),
			Combatants: []combatantEntry{
				{
					Spec: &combatant.Spec{
						ID:    "hero",
						Name:  "Hero",
						Kind:  combatant.KindPC,
						MaxHP: 24,
						AC:    16,
						Stats: combatant.Stats5e{
							Strength:     16,
							Dexterity:    14,
							Constitution: 14,
							Intelligence: 10,
							Wisdom:       12,
							Charisma:     10,
						},
					},
				},
				{Template: template, ID: template + "-1"},
				{Template: template, ID: template + "-2"},
			},
		}
		enc, err := createEncounter(ui.client, ui.cfg.APIBaseURL, req)
		return encounterCreatedMsg{enc: enc, err: err}
	}
}

// performAction posts an action and refreshes the encounter state
func (ui *ConsoleUI) performAction(label, action string, payload interface{}) tea.Cmd {
	encounterID := ui.enc.ID.String()
	return func() tea.Msg {
		body, err := postAction(ui.client, ui.cfg.APIBaseURL, encounterID, action, payload)
		if err != nil {
			return actionMsg{label: label, err: err}
		}
		enc, err := getEncounter(ui.client, ui.cfg.APIBaseURL, encounterID)
		return actionMsg{label: label, body: body, enc: enc, err: err}
	}
}

// startSSE launches the event stream listener for the encounter
func (ui *ConsoleUI) startSSE() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	ui.sseCancel = cancel
	encounterID := ui.enc.ID.String()
	go func() {
		_ = listenToSSE(ctx, ui.client, ui.cfg.APIBaseURL, encounterID, ui.sseEvents)
	}()
	return ui.waitForSSE()
}

func (ui *ConsoleUI) waitForSSE() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ui.sseEvents
		if !ok {
			return sseClosedMsg{}
		}
		return sseMsg(event)
	}
}

func (ui *ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		ui.width = msg.Width
		ui.height = msg.Height
		ui.layout()
		ui.ready = true
		return ui, nil

	case tea.KeyMsg:
		return ui.handleKey(msg)

	case templatesMsg:
		if msg.err != nil {
			ui.setupErr = msg.err.Error()
			return ui, nil
		}
		ui.templates = msg.templates
		if len(ui.templates) == 0 {
			ui.setupErr = "no combatant templates available; check DATA_DIR on the API"
		}
		return ui, nil

	case encounterCreatedMsg:
		if msg.err != nil {
			ui.setupErr = msg.err.Error()
			return ui, nil
		}
		ui.enc = msg.enc
		ui.state = stateCombat
		ui.appendLog(systemStyle.Render(fmt.Sprintf("Encounter %s created. Roll initiative with 'roll'.", ui.enc.ID)))
		ui.refreshMeta()
		return ui, ui.startSSE()

	case actionMsg:
		if msg.err != nil {
			ui.appendLog(errorStyle.Render("Error: " + msg.err.Error()))
			return ui, nil
		}
		if msg.enc != nil {
			ui.enc = msg.enc
			ui.refreshMeta()
		}
		if !msg.silent && msg.label != "" {
			ui.appendLog(systemStyle.Render(msg.label))
		}
		return ui, nil

	case sseMsg:
		ui.appendLog(formatSSEEvent(SSEEvent(msg)))
		// Combat events mean state changed server-side; refresh the
		// panel so worker-applied effects show up too.
		if msg.Event == "combat.event" && ui.enc != nil {
			cmds = append(cmds, ui.performActionRefresh())
		}
		cmds = append(cmds, ui.waitForSSE())
		return ui, tea.Batch(cmds...)

	case sseClosedMsg:
		ui.appendLog(systemStyle.Render("Event stream closed."))
		return ui, nil
	}

	if ui.state == stateCombat {
		var taCmd, vpCmd tea.Cmd
		ui.textarea, taCmd = ui.textarea.Update(msg)
		ui.logViewport, vpCmd = ui.logViewport.Update(msg)
		cmds = append(cmds, taCmd, vpCmd)
	}
	return ui, tea.Batch(cmds...)
}

// performActionRefresh silently re-fetches encounter state
func (ui *ConsoleUI) performActionRefresh() tea.Cmd {
	encounterID := ui.enc.ID.String()
	return func() tea.Msg {
		enc, err := getEncounter(ui.client, ui.cfg.APIBaseURL, encounterID)
		return actionMsg{enc: enc, err: err, silent: true}
	}
}

func (ui *ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if ui.showQuitModal {
		switch msg.String() {
		case "y", "enter":
			if ui.sseCancel != nil {
				ui.sseCancel()
			}
			return ui, tea.Quit
		case "n", "esc":
			ui.showQuitModal = false
		}
		return ui, nil
	}

	switch msg.String() {
	case "ctrl+c", "esc":
		ui.showQuitModal = true
		return ui, nil
	}

	if ui.state == stateSetup {
		switch msg.String() {
		case "up", "k":
			if ui.templateCursor > 0 {
				ui.templateCursor--
			}
		case "down", "j":
			if ui.templateCursor < len(ui.templates)-1 {
				ui.templateCursor++
			}
		case "enter":
			if len(ui.templates) > 0 {
				ui.setupErr = ""
				return ui, ui.createEncounterCmd(ui.templates[ui.templateCursor])
			}
		}
		return ui, nil
	}

	if msg.String() == "enter" {
		input := strings.TrimSpace(ui.textarea.Value())
		ui.textarea.Reset()
		if input == "" {
			return ui, nil
		}
		return ui, ui.handleCommand(input)
	}

	var cmd tea.Cmd
	ui.textarea, cmd = ui.textarea.Update(msg)
	return ui, cmd
}

// handleCommand parses a console command and dispatches the matching
// API action.
func (ui *ConsoleUI) handleCommand(input string) tea.Cmd {
	ui.appendLog("> " + input)

	fields := strings.Fields(input)
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "help":
		ui.appendLog(helpText())
		return nil

	case "quit", "exit":
		ui.showQuitModal = true
		return nil

	case "copy":
		if err := clipboard.WriteAll(ui.enc.ID.String()); err != nil {
			ui.appendLog(errorStyle.Render("Error: " + err.Error()))
			return nil
		}
		ui.appendLog(systemStyle.Render("Encounter ID copied to clipboard."))
		return nil

	case "roll":
		payload := interface{}(nil)
		if len(args) >= 1 {
			seed, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				ui.appendLog(errorStyle.Render("Usage: roll [seed]"))
				return nil
			}
			payload = seedActionRequest{Seed: seed}
		}
		return ui.performAction("Initiative rolled.", "initiative", payload)

	case "turn", "next":
		req := nomineeActionRequest{}
		if len(args) >= 1 {
			req.Nominee = args[0]
		}
		return ui.performAction("Turn advanced.", "turn", req)

	case "damage", "dmg":
		if len(args) < 2 {
			ui.appendLog(errorStyle.Render("Usage: damage <target> <amount> [type] [source]"))
			return nil
		}
		amount, err := strconv.Atoi(args[1])
		if err != nil {
			ui.appendLog(errorStyle.Render("Damage amount must be a number"))
			return nil
		}
		inst := combat.DamageInstruction{Amount: amount}
		if len(args) >= 3 {
			inst.Type = combatant.DamageType(args[2])
		}
		if len(args) >= 4 {
			inst.Source = strings.Join(args[3:], " ")
		}
		return ui.performAction("", "damage", damageActionRequest{Target: args[0], Damage: inst})

	case "heal":
		target, amount, ok := targetAmount(args)
		if !ok {
			ui.appendLog(errorStyle.Render("Usage: heal <target> <amount>"))
			return nil
		}
		return ui.performAction("", "heal", amountActionRequest{Target: target, Amount: amount})

	case "temp":
		target, amount, ok := targetAmount(args)
		if !ok {
			ui.appendLog(errorStyle.Render("Usage: temp <target> <amount>"))
			return nil
		}
		return ui.performAction("", "temp-hp", amountActionRequest{Target: target, Amount: amount})

	case "save":
		target, roll, ok := targetAmount(args)
		if !ok {
			ui.appendLog(errorStyle.Render("Usage: save <target> <d20 roll>"))
			return nil
		}
		return ui.performAction("", "death-save", rollActionRequest{Target: target, Roll: roll})

	case "stab":
		if len(args) < 1 {
			ui.appendLog(errorStyle.Render("Usage: stab <target>"))
			return nil
		}
		return ui.performAction("Stabilized.", "stabilize", targetActionRequest{Target: args[0]})

	case "revive":
		target, hp, ok := targetAmount(args)
		if !ok {
			ui.appendLog(errorStyle.Render("Usage: revive <target> <hp>"))
			return nil
		}
		return ui.performAction("Revived.", "revive", reviveActionRequest{Target: target, HP: hp})

	case "conc":
		if len(args) < 1 {
			ui.appendLog(errorStyle.Render("Usage: conc <target>"))
			return nil
		}
		return ui.performAction("Concentration broken.", "concentration", targetActionRequest{Target: args[0]})

	case "burn":
		// Queues an ongoing effect; the worker applies it when the
		// turn advances.
		if len(args) < 2 {
			ui.appendLog(errorStyle.Render("Usage: burn <target> <amount> [type]"))
			return nil
		}
		amount, err := strconv.Atoi(args[1])
		if err != nil {
			ui.appendLog(errorStyle.Render("Effect amount must be a number"))
			return nil
		}
		inst := combat.DamageInstruction{Amount: amount, Type: combatant.DamageFire, Source: "ongoing effect"}
		if len(args) >= 3 {
			inst.Type = combatant.DamageType(args[2])
		}
		return ui.performAction("Ongoing effect queued.", "effects", damageActionRequest{Target: args[0], Damage: inst})

	default:
		ui.appendLog(errorStyle.Render(fmt.Sprintf("Unknown command %q. Type 'help' for a list.", verb)))
		return nil
	}
}

func targetAmount(args []string) (string, int, bool) {
	if len(args) < 2 {
		return "", 0, false
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, false
	}
	return args[0], n, true
}

func helpText() string {
	return helpStyle.Render(strings.Join([]string{
		"Commands:",
		"  roll [seed]                      Roll initiative",
		"  turn [nominee]                   Advance the turn (nominee under popcorn)",
		"  damage <target> <amt> [type]     Apply damage",
		"  heal <target> <amt>              Apply healing",
		"  temp <target> <amt>              Grant temporary HP",
		"  save <target> <roll>             Resolve a death save with a d20 roll",
		"  stab <target>                    Stabilize a dying PC",
		"  revive <target> <hp>             Revive an unconscious PC",
		"  conc <target>                    Break concentration",
		"  burn <target> <amt> [type]       Queue ongoing damage for next turn",
		"  copy                             Copy encounter ID to clipboard",
		"  quit                             Exit the console",
	}, "\n"))
}

// formatSSEEvent renders one event stream message as a log line
func formatSSEEvent(event SSEEvent) string {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(event.Data), &data); err != nil {
		return systemStyle.Render(fmt.Sprintf("[%s]", event.Event))
	}

	switch event.Event {
	case "connected":
		return systemStyle.Render("Connected to event stream.")
	case "combat.event":
		name, _ := data["combat_event"].(string)
		who, _ := data["combatant_id"].(string)
		line := fmt.Sprintf("* %s", name)
		if who != "" {
			line += " [" + who + "]"
		}
		if detail, ok := data["detail"].(map[string]interface{}); ok && len(detail) > 0 {
			parts := make([]string, 0, len(detail))
			for k, v := range detail {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
			line += " " + strings.Join(parts, " ")
		}
		return line
	default:
		return systemStyle.Render("[" + event.Event + "]")
	}
}

func (ui *ConsoleUI) appendLog(line string) {
	width := ui.logViewport.Width
	if width <= 0 {
		width = 80
	}
	ui.logLines = append(ui.logLines, wordwrap.String(line, width))
	ui.logViewport.SetContent(strings.Join(ui.logLines, "\n"))
	ui.logViewport.GotoBottom()
}

// refreshMeta redraws the side panel from current encounter state
func (ui *ConsoleUI) refreshMeta() {
	if ui.enc == nil {
		return
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render(ui.enc.Name) + "\n")
	b.WriteString(fmt.Sprintf("System: %s\n", ui.enc.System))
	if ui.enc.Clock != nil && ui.enc.Order != nil && len(ui.enc.Order.Entries) > 0 {
		b.WriteString(fmt.Sprintf("Round %d, turn %d\n", ui.enc.Clock.Round, ui.enc.Clock.Turn+1))
	}
	b.WriteString("\n")

	if ui.enc.Order != nil && len(ui.enc.Order.Entries) > 0 {
		b.WriteString("Turn order:\n")
		for i, entry := range ui.enc.Order.Entries {
			marker := "  "
			if ui.enc.Clock != nil && i == ui.enc.Clock.Turn {
				marker = "> "
			}
			b.WriteString(fmt.Sprintf("%s%s (%d)\n", marker, entry.Name, entry.Initiative))
		}
		b.WriteString("\n")
	}

	b.WriteString("Roster:\n")
	for _, c := range ui.enc.Combatants {
		b.WriteString(formatCombatantLine(c) + "\n")
	}

	ui.metaViewport.SetContent(b.String())
}

func formatCombatantLine(c *combatant.Combatant) string {
	line := fmt.Sprintf("%s %d/%d", c.Name, c.HP, c.MaxHP)
	if c.TempHP > 0 {
		line += fmt.Sprintf(" (+%d)", c.TempHP)
	}
	var tags []string
	switch {
	case c.Dead:
		tags = append(tags, "dead")
	case c.Stabilized:
		tags = append(tags, "stable")
	case c.IsDying():
		tags = append(tags, fmt.Sprintf("dying %d/%d", c.DeathSaves.Successes, c.DeathSaves.Failures))
	}
	if c.Concentrating {
		tags = append(tags, "conc")
	}
	if len(tags) > 0 {
		line += " [" + strings.Join(tags, ", ") + "]"
	}
	return line
}

func (ui *ConsoleUI) layout() {
	logWidth := ui.width * 3 / 4
	metaWidth := ui.width - logWidth - 6
	bodyHeight := ui.height - 8
	if bodyHeight < 4 {
		bodyHeight = 4
	}

	if ui.logViewport.Width == 0 {
		ui.logViewport = viewport.New(logWidth, bodyHeight)
		ui.metaViewport = viewport.New(metaWidth, bodyHeight)
	} else {
		ui.logViewport.Width = logWidth
		ui.logViewport.Height = bodyHeight
		ui.metaViewport.Width = metaWidth
		ui.metaViewport.Height = bodyHeight
	}
	ui.textarea.SetWidth(ui.width - 4)

	ui.logViewport.SetContent(strings.Join(ui.logLines, "\n"))
	ui.refreshMeta()
}

func (ui *ConsoleUI) View() string {
	if !ui.ready {
		return "Initializing..."
	}

	if ui.showQuitModal {
		modal := modalStyle.Render("Quit the console?\n\n[y] yes   [n] no")
		return lipgloss.Place(ui.width, ui.height, lipgloss.Center, lipgloss.Center, modal)
	}

	if ui.state == stateSetup {
		return ui.setupView()
	}

	title := titleStyle.Render("Combat Engine Console")
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		logStyle.Render(ui.logViewport.View()),
		metaStyle.Render(ui.metaViewport.View()),
	)
	input := inputStyle.Render(ui.textarea.View())
	status := helpStyle.Render("enter: send  esc: quit  'help' for commands")

	return lipgloss.JoinVertical(lipgloss.Left, title, body, input, status)
}

func (ui *ConsoleUI) setupView() string {
	var b strings.Builder
	b.WriteString("Choose an opponent\n\n")

	if len(ui.templates) == 0 && ui.setupErr == "" {
		b.WriteString("Loading templates...\n")
	}
	for i, t := range ui.templates {
		line := "  " + t
		if i == ui.templateCursor {
			line = selectedStyle.Render("> " + t)
		}
		b.WriteString(line + "\n")
	}
	if ui.setupErr != "" {
		b.WriteString("\n" + errorStyle.Render(ui.setupErr) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("up/down: select  enter: start  esc: quit"))

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(ui.width, ui.height, lipgloss.Center, lipgloss.Center, modal)
}

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brechtDR/ai-guess-who/internal/game"
	"github.com/brechtDR/ai-guess-who/internal/gateway"
)

type screen int

const (
	screenSetup screen = iota
	screenPlaying
	screenError
)

var (
	playerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	aiStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF"))

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	eliminatedCardStyle = cardStyle.
				Foreground(lipgloss.Color("#555555")).
				Strikethrough(true)

	secretCardStyle = cardStyle.
			BorderForeground(lipgloss.Color("#FFA500")).
			Bold(true)
)

type model struct {
	screen screen
	engine *game.Engine
	gw     *gateway.Gateway
	roster []game.Character

	// onReviewMode persists the review-mode preference when the player
	// toggles it. May be nil.
	onReviewMode func(enabled bool)

	busy bool
	err    error
	status gateway.Status
	pct    int
	prog   chan int
	width  int
	height int
	spin   spinner.Model
	bar    progress.Model
	input  textinput.Model
	log    viewport.Model
}

// New builds the TUI over an engine, its gateway, and the roster a new game
// will use. onReviewMode, when non-nil, is called with the new value every
// time the player toggles analysis review.
func New(eng *game.Engine, gw *gateway.Gateway, roster []game.Character, onReviewMode func(enabled bool)) model {
	ti := textinput.New()
	ti.Placeholder = "Ask a yes/no question..."
	ti.CharLimit = 156
	ti.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		screen:       screenSetup,
		engine:       eng,
		gw:           gw,
		roster:       roster,
		onReviewMode: onReviewMode,
		spin:         sp,
		bar:          progress.New(progress.WithDefaultGradient()),
		input:        ti,
		prog:         make(chan int, 8),
	}
}

type initDoneMsg struct {
	status gateway.Status
	err    error
}

type progressMsg int

type gameStartedMsg struct{ err error }

type opDoneMsg struct{ err error }

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.initialize(), m.waitForProgress())
}

func (m model) initialize() tea.Cmd {
	return func() tea.Msg {
		status, err := m.gw.Initialize(context.Background(), func(pct int) {
			m.prog <- pct
		})
		// Unblocks the progress listener for good.
		close(m.prog)
		return initDoneMsg{status: status, err: err}
	}
}

func (m model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		pct, ok := <-m.prog
		if !ok {
			return nil
		}
		return progressMsg(pct)
	}
}

func (m model) startGame() tea.Cmd {
	return func() tea.Msg {
		return gameStartedMsg{err: m.engine.StartGame(context.Background(), m.roster)}
	}
}

func (m model) submitQuestion(text string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: m.engine.SubmitPlayerQuestion(context.Background(), text)}
	}
}

func (m model) endTurn() tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: m.engine.EndTurn(context.Background())}
	}
}

func (m model) playAgain() tea.Cmd {
	return func() tea.Msg {
		if err := m.engine.Reset(context.Background()); err != nil {
			return gameStartedMsg{err: err}
		}
		return gameStartedMsg{err: m.engine.StartGame(context.Background(), m.roster)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.log.Width = msg.Width - 4
		m.log.Height = msg.Height - 10
		if m.log.Height < 4 {
			m.log.Height = 4
		}
		if m.screen == screenPlaying {
			m.log.SetContent(m.renderLog())
		}

	case progressMsg:
		m.pct = int(msg)
		return m, m.waitForProgress()

	case initDoneMsg:
		m.status = msg.status
		if msg.err != nil {
			m.err = msg.err
			m.screen = screenError
			return m, nil
		}
		m.busy = true
		return m, m.startGame()

	case gameStartedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			m.screen = screenError
			return m, nil
		}
		m.screen = screenPlaying
		if m.log.Width == 0 {
			m.log = viewport.New(m.width-4, 10)
		}
		m.input.Focus()
		m.refreshLog()
		return m, textinput.Blink

	case opDoneMsg:
		m.busy = false
		// Invalid-state slips show inline, not fatally.
		m.err = msg.err
		m.refreshLog()
		return m, nil

	case spinner.TickMsg:
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	if m.screen == screenPlaying && m.engine.State() == game.StatePlayerAsking {
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
		return m, tea.Quit
	}
	if m.screen != screenPlaying || m.busy {
		return m, nil
	}

	switch m.engine.State() {
	case game.StatePlayerAsking:
		if msg.Type == tea.KeyEnter {
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			m.busy = true
			m.refreshLog()
			return m, m.submitQuestion(text)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case game.StatePlayerEliminating:
		if n := indexKey(msg.String()); n >= 0 && n < len(m.roster) {
			_ = m.engine.ToggleOwnElimination(m.roster[n].ID)
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			m.busy = true
			return m, m.endTurn()
		}

	case game.StateReviewingAnalysis:
		if msg.Type == tea.KeyEnter {
			_ = m.engine.ConfirmAnalysisReview()
			m.refreshLog()
		}

	case game.StateWaitingForAnswer:
		switch msg.String() {
		case "y", "Y":
			_ = m.engine.SubmitPlayerAnswer(game.AnswerYes)
			m.refreshLog()
		case "n", "N":
			_ = m.engine.SubmitPlayerAnswer(game.AnswerNo)
			m.refreshLog()
		}

	case game.StateGameOver:
		switch msg.String() {
		case "p":
			m.busy = true
			return m, m.playAgain()
		case "r":
			enabled := !m.engine.ReviewMode()
			m.engine.SetReviewMode(enabled)
			if m.onReviewMode != nil {
				m.onReviewMode(enabled)
			}
			return m, nil
		case "q":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *model) refreshLog() {
	m.log.SetContent(m.renderLog())
	m.log.GotoBottom()
}

func (m model) View() string {
	switch m.screen {
	case screenSetup:
		if m.status == gateway.StatusDownloading {
			return fmt.Sprintf("\n  Downloading model...\n\n  %s\n", m.bar.ViewAs(float64(m.pct)/100))
		}
		return fmt.Sprintf("\n  %s Preparing the model...\n", m.spin.View())

	case screenError:
		return fmt.Sprintf("\n  Error: %v\n\nPress Esc to quit.", m.err)
	}

	var footer string
	if m.busy {
		footer = m.spin.View() + " thinking..."
	} else {
		footer = m.renderFooter()
	}

	var inline string
	if m.err != nil {
		inline = systemStyle.Render(fmt.Sprintf("(%v)", m.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderBoard(),
		m.log.View(),
		footer,
		inline,
	)
}

func (m model) renderFooter() string {
	switch m.engine.State() {
	case game.StatePlayerAsking:
		return m.input.View() + "\n" + helpStyle.Render("Ask a yes/no question, or guess with \"Is it <name>?\". Esc quits.")
	case game.StatePlayerEliminating:
		return helpStyle.Render("Press a character's number to cross it off, Enter to end your turn.")
	case game.StateReviewingAnalysis:
		return m.renderAnalysis() + "\n" + helpStyle.Render("The AI's analysis, for transparency. Enter to continue.")
	case game.StateWaitingForAnswer:
		return helpStyle.Render(fmt.Sprintf("Answer the AI honestly: %q  [y/n]", m.engine.LastAIQuestion()))
	case game.StateGameOver:
		review := "off"
		if m.engine.ReviewMode() {
			review = "on"
		}
		return titleStyle.Render("GAME OVER") + "  " + m.engine.WinReason() + "\n" +
			helpStyle.Render(fmt.Sprintf("p: play again, r: analysis review (%s), q: quit", review))
	}
	return ""
}

func (m model) renderAnalysis() string {
	var b strings.Builder
	for _, j := range m.engine.LastAIAnalysis() {
		verdict := "no"
		if j.HasFeature {
			verdict = "yes"
		}
		fmt.Fprintf(&b, "%s: %s  ", j.Name, verdict)
	}
	return systemStyle.Render(strings.TrimSpace(b.String()))
}

func (m model) renderBoard() string {
	eliminated := m.engine.PlayerEliminated()
	secret := m.engine.PlayerSecret()

	cards := make([]string, 0, len(m.roster))
	for i, c := range m.roster {
		label := fmt.Sprintf("%d %s", i+1, c.Name)
		style := cardStyle
		switch {
		case eliminated[c.ID]:
			style = eliminatedCardStyle
		case c.ID == secret.ID:
			style = secretCardStyle
			label += " ★"
		}
		cards = append(cards, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (m model) renderLog() string {
	var b strings.Builder
	for _, msg := range m.engine.Messages() {
		switch msg.Sender {
		case game.SenderPlayer:
			b.WriteString(playerStyle.Render("You: " + msg.Text))
		case game.SenderAI:
			b.WriteString(aiStyle.Render("AI: " + msg.Text))
		default:
			b.WriteString(systemStyle.Render(msg.Text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func indexKey(key string) int {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return -1
	}
	return int(key[0] - '1')
}

// Run starts the program over an engine, gateway and roster.
func Run(eng *game.Engine, gw *gateway.Gateway, roster []game.Character, onReviewMode func(enabled bool)) error {
	p := tea.NewProgram(New(eng, gw, roster, onReviewMode), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

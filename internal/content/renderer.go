// Package content renders chat messages for the terminal: role-styled
// bubbles, syntax-highlighted code fences and Pokémon data cards attached to
// assistant replies.
package content

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/pokedex-chat/console/internal/interfaces"
)

// SyntaxHighlighter applies terminal syntax highlighting using Chroma.
type SyntaxHighlighter struct {
	formatter chroma.Formatter
	style     *chroma.Style
}

// NewSyntaxHighlighter creates a highlighter with the given Chroma theme and
// formatter, falling back to sane defaults for unknown names.
func NewSyntaxHighlighter(themeName, formatterName string) *SyntaxHighlighter {
	formatter := formatters.Get(formatterName)
	if formatter == nil {
		formatter = formatters.Fallback
	}
	style := styles.Get(themeName)
	if style == nil {
		style = styles.GitHub
	}
	return &SyntaxHighlighter{formatter: formatter, style: style}
}

// Highlight renders code with ANSI colors. On any failure the raw code is
// returned so the message still displays.
func (sh *SyntaxHighlighter) Highlight(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var highlighted strings.Builder
	if err := sh.formatter.Format(&highlighted, sh.style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(highlighted.String(), "\n")
}

// pokemonCard is the structured Pokémon payload attached to some assistant
// replies. Unknown fields are ignored.
type pokemonCard struct {
	Name      string         `json:"name"`
	Types     []string       `json:"types"`
	Height    float64        `json:"height"`
	Weight    float64        `json:"weight"`
	Abilities []string       `json:"abilities"`
	Stats     map[string]int `json:"stats"`
}

// Renderer turns messages into styled terminal output.
type Renderer struct {
	highlighter *SyntaxHighlighter

	userStyle    lipgloss.Style
	botStyle     lipgloss.Style
	pendingStyle lipgloss.Style
	labelStyle   lipgloss.Style
	cardStyle    lipgloss.Style
	cardTitle    lipgloss.Style
	width        int
}

// NewRenderer creates a renderer with the Pokédex color scheme.
func NewRenderer() *Renderer {
	return &Renderer{
		highlighter: NewSyntaxHighlighter("github", "terminal256"),
		userStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("25")).
			Padding(0, 1),
		botStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("88")).
			Padding(0, 1),
		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true).
			Padding(0, 1),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Bold(true),
		cardStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("178")).
			Padding(0, 1),
		cardTitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")).
			Bold(true),
		width: 80,
	}
}

// SetWidth adjusts wrapping to the current terminal width.
func (r *Renderer) SetWidth(width int) {
	if width > 20 {
		r.width = width
	}
}

// RenderMessage renders one message with its role label, body and any
// attached Pokémon card.
func (r *Renderer) RenderMessage(msg interfaces.Message) string {
	var parts []string

	label := "You"
	if msg.Role == interfaces.RoleAssistant {
		label = "Pokédex"
	}
	timestamp := ""
	if !msg.Timestamp.IsZero() {
		timestamp = "  " + msg.Timestamp.Local().Format("15:04")
	}
	parts = append(parts, r.labelStyle.Render(label+timestamp))

	body := r.renderBody(msg.Content)
	switch {
	case msg.State == interfaces.MessagePending:
		parts = append(parts, r.pendingStyle.Width(r.bubbleWidth()).Render(body+" …"))
	case msg.Role == interfaces.RoleAssistant:
		parts = append(parts, r.botStyle.Width(r.bubbleWidth()).Render(body))
	default:
		parts = append(parts, r.userStyle.Width(r.bubbleWidth()).Render(body))
	}

	if msg.PokemonData != nil {
		if card := r.renderPokemonCard(msg.PokemonData); card != "" {
			parts = append(parts, card)
		}
	}

	return strings.Join(parts, "\n")
}

// RenderConversationLabel formats a conversation list entry.
func (r *Renderer) RenderConversationLabel(conv interfaces.Conversation) string {
	return fmt.Sprintf("%s (%d messages)", conv.Title, conv.MessageCount)
}

func (r *Renderer) bubbleWidth() int {
	return r.width - 4
}

// renderBody highlights fenced code blocks and leaves prose untouched.
func (r *Renderer) renderBody(content string) string {
	if !strings.Contains(content, "```") {
		return content
	}

	var out strings.Builder
	rest := content
	for {
		open := strings.Index(rest, "```")
		if open < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:open])
		rest = rest[open+3:]

		end := strings.Index(rest, "```")
		if end < 0 {
			// Unterminated fence, emit as-is.
			out.WriteString("```")
			out.WriteString(rest)
			break
		}
		block := rest[:end]
		rest = rest[end+3:]

		language := ""
		if nl := strings.Index(block, "\n"); nl >= 0 {
			language = strings.TrimSpace(block[:nl])
			block = block[nl+1:]
		}
		out.WriteString(r.highlighter.Highlight(strings.TrimRight(block, "\n"), language))
	}
	return out.String()
}

// renderPokemonCard formats the structured Pokémon payload as a bordered
// card. Payloads that do not look like Pokémon data render nothing.
func (r *Renderer) renderPokemonCard(data any) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	var card pokemonCard
	if err := json.Unmarshal(raw, &card); err != nil || card.Name == "" {
		return ""
	}

	var lines []string
	lines = append(lines, r.cardTitle.Render(titleCase(card.Name)))
	if len(card.Types) > 0 {
		lines = append(lines, "Type: "+strings.Join(card.Types, " / "))
	}
	if card.Height > 0 || card.Weight > 0 {
		lines = append(lines, fmt.Sprintf("Height: %.1f m   Weight: %.1f kg", card.Height, card.Weight))
	}
	if len(card.Abilities) > 0 {
		lines = append(lines, "Abilities: "+strings.Join(card.Abilities, ", "))
	}
	if len(card.Stats) > 0 {
		names := make([]string, 0, len(card.Stats))
		for name := range card.Stats {
			names = append(names, name)
		}
		sort.Strings(names)
		stats := make([]string, 0, len(names))
		for _, name := range names {
			stats = append(stats, fmt.Sprintf("%s %d", name, card.Stats[name]))
		}
		lines = append(lines, "Stats: "+strings.Join(stats, "  "))
	}

	return r.cardStyle.Render(strings.Join(lines, "\n"))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sigil-dev/imgsearch/internal/config"
	"github.com/sigil-dev/imgsearch/internal/secrets"
	imgerr "github.com/sigil-dev/imgsearch/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const openAIDefaultModel = "clip-vit-large-patch14"

type initWizardStep int

const (
	stepVector   initWizardStep = iota // pick the vector index backend
	stepMetadata                       // pick the metadata store backend
	stepEmbedder                       // pick the embedding provider
	stepSecret                         // enter credentials, one prompt at a time
	stepValidate                       // checking the generated config (spinner)
	stepDone
	stepError
)

// choice is one single-select question of the wizard.
type choice struct {
	title   string
	options []string
}

var choices = map[initWizardStep]choice{
	stepVector:   {title: "Vector index backend", options: []string{"sqlite", "qdrant"}},
	stepMetadata: {title: "Metadata store backend", options: []string{"sqlite", "mysql"}},
	stepEmbedder: {title: "Embedding provider", options: []string{"thumbnail", "openai"}},
}

// secretPrompt asks for one credential stored under key in the keyring.
type secretPrompt struct {
	key      string
	label    string
	optional bool
}

// initResult holds what the wizard collected.
type initResult struct {
	VectorBackend   string
	MetadataBackend string
	Embedder        string
	// Secrets maps keyring key names to their values. Empty values are not stored.
	Secrets map[string]string
}

// prompts lists the credentials the chosen backends need.
func (r initResult) prompts() []secretPrompt {
	var ps []secretPrompt
	if r.VectorBackend == "qdrant" {
		ps = append(ps, secretPrompt{key: secrets.KeyQdrantAPIKey, label: "Qdrant API key (enter to skip)", optional: true})
	}
	if r.MetadataBackend == "mysql" {
		ps = append(ps, secretPrompt{key: secrets.KeyMySQLPassword, label: "MySQL password"})
	}
	if r.Embedder == "openai" {
		ps = append(ps, secretPrompt{key: secrets.KeyOpenAIAPIKey, label: "OpenAI API key"})
	}
	return ps
}

type (
	configValidMsg   struct{}
	configInvalidMsg struct{ err error }
	configWrittenMsg struct{ path string }
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step       initWizardStep
	cursor     int
	prompts    []secretPrompt
	promptIdx  int
	input      textinput.Model
	spinner    spinner.Model
	result     initResult
	inputErr   string
	configPath string
	store      secrets.Store
	force      bool
	errFinal   error
}

func newInitModel(store secrets.Store, force bool) initModel {
	in := textinput.New()
	in.EchoMode = textinput.EchoPassword
	in.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:    stepVector,
		input:   in,
		spinner: sp,
		store:   store,
		force:   force,
		result:  initResult{Secrets: map[string]string{}},
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.step {
		case stepVector, stepMetadata, stepEmbedder:
			return m.handleChoiceKey(msg)
		case stepSecret:
			return m.handleSecretKey(msg)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case configValidMsg:
		return m, writeConfigCmd(m.result, m.store, m.force)

	case configInvalidMsg:
		m.step = stepError
		m.errFinal = msg.err
		return m, tea.Quit

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	if m.step == stepSecret {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m initModel) handleChoiceKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	opts := choices[m.step].options
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(opts)-1 {
			m.cursor++
		}
	case "enter":
		picked := opts[m.cursor]
		m.cursor = 0
		switch m.step {
		case stepVector:
			m.result.VectorBackend = picked
			m.step = stepMetadata
		case stepMetadata:
			m.result.MetadataBackend = picked
			m.step = stepEmbedder
		case stepEmbedder:
			m.result.Embedder = picked
			m.prompts = m.result.prompts()
			return m.nextPrompt()
		}
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

// nextPrompt shows the next pending credential prompt, or starts
// validation once there are none left.
func (m initModel) nextPrompt() (tea.Model, tea.Cmd) {
	if m.promptIdx >= len(m.prompts) {
		m.step = stepValidate
		return m, tea.Batch(m.spinner.Tick, validateConfigCmd(m.result))
	}
	m.step = stepSecret
	m.inputErr = ""
	m.input.SetValue("")
	m.input.Placeholder = m.prompts[m.promptIdx].label
	m.input.Focus()
	return m, textinput.Blink
}

func (m initModel) handleSecretKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() != "enter" {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	p := m.prompts[m.promptIdx]
	value := strings.TrimSpace(m.input.Value())
	if value == "" && !p.optional {
		m.inputErr = p.label + " must not be empty"
		return m, nil
	}
	if value != "" {
		m.result.Secrets[p.key] = value
	}
	m.promptIdx++
	return m.nextPrompt()
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  imgsearch setup  ") + "\n\n")

	switch m.step {
	case stepVector, stepMetadata, stepEmbedder:
		c := choices[m.step]
		fmt.Fprintf(&b, "%s\n\n", promptStyle.Render(fmt.Sprintf("Step %d/3: %s", int(m.step)+1, c.title)))
		for i, opt := range c.options {
			if i == m.cursor {
				b.WriteString(selectedStyle.Render("  > "+opt) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+opt) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepSecret:
		p := m.prompts[m.promptIdx]
		b.WriteString(promptStyle.Render(p.label) + "\n")
		b.WriteString(dimStyle.Render("stored in the OS keyring as "+p.key) + "\n\n")
		b.WriteString(m.input.View() + "\n")
		if m.inputErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.inputErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidate:
		b.WriteString(m.spinner.View() + " Checking configuration…\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("imgsearch serve") + " to start the server.\n")
		b.WriteString("Run " + promptStyle.Render("imgsearch doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func validateConfigCmd(result initResult) tea.Cmd {
	return func() tea.Msg {
		if err := validateGeneratedConfig(result); err != nil {
			return configInvalidMsg{err: err}
		}
		return configValidMsg{}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, force bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretsAndWriteConfig(result, store, force)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// GenerateConfigYAML renders the wizard result as a config file. Credentials
// appear only as keyring:// references.
func GenerateConfigYAML(result initResult) string {
	var sb strings.Builder
	sb.WriteString("# imgsearch configuration, generated by imgsearch init.\n")
	sb.WriteString("# Every other key keeps its default; see `imgsearch config show`.\n\n")

	sb.WriteString("vector:\n")
	fmt.Fprintf(&sb, "  backend: %s\n", result.VectorBackend)
	if _, ok := result.Secrets[secrets.KeyQdrantAPIKey]; ok {
		sb.WriteString("  qdrant:\n")
		fmt.Fprintf(&sb, "    api_key: %q\n", secrets.Ref(secrets.KeyQdrantAPIKey))
	}
	sb.WriteString("\n")

	sb.WriteString("metadata:\n")
	fmt.Fprintf(&sb, "  backend: %s\n", result.MetadataBackend)
	if _, ok := result.Secrets[secrets.KeyMySQLPassword]; ok {
		sb.WriteString("  mysql:\n")
		fmt.Fprintf(&sb, "    password: %q\n", secrets.Ref(secrets.KeyMySQLPassword))
	}
	sb.WriteString("\n")

	sb.WriteString("embedding:\n")
	fmt.Fprintf(&sb, "  provider: %s\n", result.Embedder)
	if result.Embedder == "openai" {
		sb.WriteString("  openai:\n")
		fmt.Fprintf(&sb, "    model: %s\n", openAIDefaultModel)
		if _, ok := result.Secrets[secrets.KeyOpenAIAPIKey]; ok {
			fmt.Fprintf(&sb, "    api_key: %q\n", secrets.Ref(secrets.KeyOpenAIAPIKey))
		}
	}

	return sb.String()
}

// validateGeneratedConfig decodes the generated YAML on top of the defaults
// and runs the usual validation. References are checked for shape only.
func validateGeneratedConfig(result initResult) error {
	v := viper.New()
	config.SetDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewBufferString(GenerateConfigYAML(result))); err != nil {
		return imgerr.Errorf(imgerr.CodeConfigParseInvalidFormat, "parsing generated config: %w", err)
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	if cfg.HasSecrets() {
		return imgerr.New(imgerr.CodeConfigValidateInvalidValue, "generated config would hold credentials in clear")
	}
	return nil
}

// storeSecretsAndWriteConfig saves the collected credentials to the keyring
// and writes the config file. Secrets already stored are not rolled back
// when the write fails; a rerun overwrites them.
func storeSecretsAndWriteConfig(result initResult, store secrets.Store, force bool) (string, error) {
	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}
	// An untouched bootstrapped default may be replaced without --force.
	if existing, readErr := os.ReadFile(cfgPath); readErr == nil && !force && !bytes.Equal(existing, config.DefaultConfigYAML) {
		return "", imgerr.Errorf(imgerr.CodeCLIInputInvalid,
			"config file already exists at %s; use --force to overwrite", cfgPath)
	}

	for key, value := range result.Secrets {
		if err := store.Store(secrets.Service, key, value); err != nil {
			return "", err
		}
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", imgerr.Errorf(imgerr.CodeIOWriteFailure, "creating config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(cfgPath, []byte(GenerateConfigYAML(result)), 0o600); err != nil {
		return "", imgerr.Errorf(imgerr.CodeIOWriteFailure, "writing config to %s: %w", cfgPath, err)
	}
	return cfgPath, nil
}

// configPathForWrite is replaced by tests.
var configPathForWrite = config.DefaultConfigPath

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Long: `Walk through choosing the vector index, metadata store and embedding
provider, then write ~/.config/imgsearch/imgsearch.yaml.

Passwords and API keys go to the OS keyring and the config file references
them as keyring://imgsearch/<name>.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
	cmd.Flags().Bool("force", false, "overwrite an existing config file")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"imgsearch init needs an interactive terminal.\n"+
				"Use `imgsearch config init` to write the default config instead.")
		return imgerr.New(imgerr.CodeCLISetupFailure, "imgsearch init: not an interactive terminal")
	}

	force, _ := cmd.Flags().GetBool("force")
	final, err := tea.NewProgram(newInitModel(secretStore(), force), tea.WithAltScreen()).Run()
	if err != nil {
		return imgerr.Errorf(imgerr.CodeCLISetupFailure, "init wizard: %w", err)
	}

	fm, ok := final.(initModel)
	if !ok {
		return imgerr.New(imgerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return fm.errFinal
	}
	if fm.step == stepDone {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", fm.configPath)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

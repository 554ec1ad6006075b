package runner

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/gosom/store-provisioner/tlmt"
	"github.com/gosom/store-provisioner/tlmt/gonoop"
	"github.com/gosom/store-provisioner/tlmt/goposthog"
)

const (
	RunModeWeb = iota + 1
	RunModeImport
)

var (
	ErrInvalidRunMode = errors.New("invalid run mode")
)

type Runner interface {
	Run(context.Context) error
	Close(context.Context) error
}

type Config struct {
	Addr              string
	DataFolder        string
	Debug             bool
	InputFile         string
	EnableBootstrap   bool
	InitialAdminEmail string
	DatasetPath       string
	IdentityURL       string
	IdentityAPIKey    string
	RunMode           int
}

func ParseConfig() *Config {
	cfg := Config{}

	flag.StringVar(&cfg.Addr, "addr", ":8080", "address to listen on")
	flag.StringVar(&cfg.DataFolder, "data-folder", "data", "folder for the document database")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	flag.StringVar(&cfg.InputFile, "import", "", "import the given store dataset file and exit")
	flag.BoolVar(&cfg.EnableBootstrap, "enable-bootstrap", false, "expose the unauthenticated bootstrap endpoints")
	flag.StringVar(&cfg.InitialAdminEmail, "initial-admin-email", "", "email granted the admin role by the initial-admin bootstrap")
	flag.StringVar(&cfg.DatasetPath, "dataset", "", "store dataset file served to the bootstrap import endpoint")
	flag.StringVar(&cfg.IdentityURL, "identity-url", "", "base URL of the identity provider admin API (empty: in-process provider)")
	flag.StringVar(&cfg.IdentityAPIKey, "identity-api-key", "", "API key for the identity provider admin API")

	flag.Parse()

	if cfg.IdentityAPIKey == "" {
		cfg.IdentityAPIKey = os.Getenv("IDENTITY_API_KEY")
	}

	if cfg.EnableBootstrap && cfg.InitialAdminEmail == "" {
		cfg.InitialAdminEmail = os.Getenv("INITIAL_ADMIN_EMAIL")
	}

	if cfg.IdentityURL != "" && cfg.IdentityAPIKey == "" {
		panic("IdentityAPIKey must be provided when using an identity URL")
	}

	switch {
	case cfg.InputFile != "":
		cfg.RunMode = RunModeImport
	default:
		cfg.RunMode = RunModeWeb
	}

	return &cfg
}

var (
	telemetryOnce sync.Once
	telemetry     tlmt.Telemetry
)

func Telemetry() tlmt.Telemetry {
	telemetryOnce.Do(func() {
		disableTel := func() bool {
			return os.Getenv("DISABLE_TELEMETRY") == "1"
		}()

		if disableTel {
			telemetry = gonoop.New()

			return
		}

		val, err := goposthog.New("phc_Qm3kPzW81vRJd4YnT6ufxLsgEo2aDiC97hMbXeKAj5w", "https://eu.i.posthog.com")
		if err != nil || val == nil {
			telemetry = gonoop.New()

			return
		}

		telemetry = val
	})

	return telemetry
}

func wrapText(text string, width int) []string {
	var lines []string

	currentLine := ""
	currentWidth := 0

	for _, r := range text {
		runeWidth := runewidth.RuneWidth(r)
		if currentWidth+runeWidth > width {
			lines = append(lines, currentLine)
			currentLine = string(r)
			currentWidth = runeWidth
		} else {
			currentLine += string(r)
			currentWidth += runeWidth
		}
	}

	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return lines
}

func banner(messages []string, width int) string {
	if width <= 0 {
		var err error

		width, _, err = term.GetSize(0)
		if err != nil {
			width = 80
		}
	}

	if width < 20 {
		width = 20
	}

	contentWidth := width - 4

	var wrappedLines []string
	for _, message := range messages {
		wrappedLines = append(wrappedLines, wrapText(message, contentWidth)...)
	}

	var builder strings.Builder

	builder.WriteString("╔" + strings.Repeat("═", width-2) + "╗\n")

	for _, line := range wrappedLines {
		lineWidth := runewidth.StringWidth(line)
		paddingRight := contentWidth - lineWidth

		if paddingRight < 0 {
			paddingRight = 0
		}

		builder.WriteString(fmt.Sprintf("║ %s%s ║\n", line, strings.Repeat(" ", paddingRight)))
	}

	builder.WriteString("╚" + strings.Repeat("═", width-2) + "╝\n")

	return builder.String()
}

func Banner() {
	message1 := "🏪 Store Provisioner"
	message2 := "Account provisioning and store registry synchronization"

	fmt.Fprintln(os.Stderr, banner([]string{message1, message2}, 0))
}

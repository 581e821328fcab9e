package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/spaceify/spaceify/internal/llm"
)

const (
	geminiModelsURL = "https://generativelanguage.googleapis.com/v1beta"
	openAIModelsURL = "https://api.openai.com/v1"
)

// IsInteractiveTerminal returns true if both stdin and stdout are TTYs.
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RunSetupWizard asks for a provider and API key, writes them to the config
// file and sets them in the current process. Returns false if the user
// aborted or saving failed.
func RunSetupWizard() bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("Spaceify - AI setup"))
	fmt.Println()

	provider := llm.ProviderGemini
	var apiKey string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("AI provider").
				Options(
					huh.NewOption("Google Gemini", llm.ProviderGemini),
					huh.NewOption("OpenAI", llm.ProviderOpenAI),
				).
				Value(&provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API Key").
				DescriptionFunc(func() string {
					if provider == llm.ProviderOpenAI {
						return "Create one at https://platform.openai.com/api-keys"
					}
					return "Get yours at https://aistudio.google.com/apikey"
				}, &provider).
				EchoMode(huh.EchoModePassword).
				Value(&apiKey).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("API key is required")
					}
					if provider == llm.ProviderOpenAI {
						return validateOpenAIKey(openAIModelsURL, s)
					}
					return validateGeminiKey(geminiModelsURL, s)
				}),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	values := map[string]string{
		"SPACEIFY_PROVIDER":  provider,
		"SPACEIFY_STORE_KEY": generateStoreKey(),
	}
	if provider == llm.ProviderOpenAI {
		values["OPENAI_API_KEY"] = apiKey
	} else {
		values["GEMINI_API_KEY"] = apiKey
	}

	configPath, err := FilePath()
	if err == nil {
		err = writeEnvFile(configPath, values)
	}
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		return false
	}

	for k, v := range values {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)
	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()

	return true
}

func generateStoreKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("spaceify-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// validateGeminiKey lists models, which is cheap and fails on a bad key.
func validateGeminiKey(baseURL, key string) error {
	apiErr := &apiErrorBody{}
	res, err := resty.New().
		SetTimeout(10*time.Second).
		R().
		SetQueryParam("key", key).
		SetError(apiErr).
		Get(baseURL + "/models")
	return keyCheckResult(res, err, apiErr)
}

func validateOpenAIKey(baseURL, key string) error {
	apiErr := &apiErrorBody{}
	res, err := resty.New().
		SetTimeout(10*time.Second).
		R().
		SetAuthToken(key).
		SetError(apiErr).
		Get(baseURL + "/models")
	return keyCheckResult(res, err, apiErr)
}

func keyCheckResult(res *resty.Response, err error, apiErr *apiErrorBody) error {
	if err != nil {
		return errors.New("connection failed - check your internet")
	}
	switch code := res.StatusCode(); {
	case code == 400 || code == 401 || code == 403:
		if apiErr.Error.Message != "" {
			return errors.New(apiErr.Error.Message)
		}
		return fmt.Errorf("API key rejected (HTTP %d)", code)
	case code != 200:
		return fmt.Errorf("unexpected response (HTTP %d)", code)
	}
	return nil
}

// writeEnvFile writes values to path with 0600 permissions since the file
// contains secrets.
func writeEnvFile(path string, values map[string]string) error {
	content, err := godotenv.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/LukePietrzyk/10DevsLukasz/internal/auth"
	"github.com/LukePietrzyk/10DevsLukasz/internal/client/api"
	"github.com/LukePietrzyk/10DevsLukasz/internal/client/authflow"
	"github.com/LukePietrzyk/10DevsLukasz/internal/client/generate"
	"github.com/LukePietrzyk/10DevsLukasz/internal/config"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/services"
	"github.com/LukePietrzyk/10DevsLukasz/internal/i18n"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

type CLI struct {
	ctx       context.Context
	cfg       *config.Config
	client    *api.Client
	flow      *authflow.Flow
	workspace *generate.Store
	catalog   *i18n.Catalog
	scanner   *bufio.Scanner
	logger    *slog.Logger
}

// setupLogger writes debug logs to a timestamped file so the console stays clean.
func setupLogger(cfg *config.Config) (*slog.Logger, string, func(), error) {
	logsDir := cfg.LogDir
	if logsDir == "" {
		logsDir = "logs"
	}

	f, err := config.SetupLogFile(logsDir, "fiszki_cli", cfg.LogMaxFiles)
	if err != nil {
		return nil, "", nil, err
	}

	handler := slog.NewTextHandler(f, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return a
		},
	})
	return slog.New(handler), f.Name(), func() { _ = f.Close() }, nil
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, logFile, closeLog, err := setupLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	logger.Info("session started", "log_file", logFile, "api", cfg.APIBaseURL)

	client, err := api.NewClient(cfg.APIBaseURL, logger)
	if err != nil {
		fmt.Printf("%s❌ %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}

	catalog := i18n.Polish()
	identity := auth.NewIdentityClient(cfg.SupabaseURL, cfg.SupabaseKey, logger)

	cli := &CLI{
		ctx:       context.Background(),
		cfg:       cfg,
		client:    client,
		flow:      authflow.New(identity, client, catalog, logger),
		workspace: generate.NewStore(generate.NewStubGenerator(1500*time.Millisecond, catalog), client, catalog, logger),
		catalog:   catalog,
		scanner:   bufio.NewScanner(os.Stdin),
		logger:    logger,
	}

	cli.run()
}

func (cli *CLI) run() {
	fmt.Printf("\n%s╔══════════════════════════════════════╗%s\n", colorCyan, colorReset)
	fmt.Printf("%s║            Fiszki CLI                ║%s\n", colorCyan, colorReset)
	fmt.Printf("%s╚══════════════════════════════════════╝%s\n", colorCyan, colorReset)

	for {
		if cli.flow.State() != authflow.StateVerified {
			if !cli.welcomeFlow() {
				return
			}
			continue
		}

		fmt.Println("\n" + strings.Repeat("─", 40))
		fmt.Printf("%sZalogowano jako %s%s\n", colorBlue, cli.flow.User().Email, colorReset)
		fmt.Println("1. Lista fiszek")
		fmt.Println("2. Dodaj fiszkę")
		fmt.Println("3. Edytuj fiszkę")
		fmt.Println("4. Usuń fiszkę")
		fmt.Println("5. Generuj fiszki")
		fmt.Println("6. Zmień hasło")
		fmt.Println("7. Wyloguj")
		fmt.Println("8. Wyjście")
		fmt.Print("\nWybierz (1-8): ")

		choice := cli.readLine()
		cli.logger.Debug("menu selection", "choice", choice)

		switch choice {
		case "1":
			cli.listFlow()
		case "2":
			cli.createFlow()
		case "3":
			cli.editFlow()
		case "4":
			cli.deleteFlow()
		case "5":
			cli.generateFlow()
		case "6":
			cli.changePasswordFlow()
		case "7":
			cli.logout()
		case "8":
			fmt.Printf("%s✓ Do zobaczenia!%s\n", colorGreen, colorReset)
			return
		default:
			fmt.Printf("%s⚠ Nieprawidłowy wybór.%s\n", colorYellow, colorReset)
		}
	}
}

// welcomeFlow returns false when the user chose to quit.
func (cli *CLI) welcomeFlow() bool {
	fmt.Printf("\n%s=== Witaj ===%s\n", colorCyan, colorReset)
	fmt.Println("1. Zaloguj")
	fmt.Println("2. Zarejestruj")
	fmt.Println("3. Nie pamiętam hasła")
	fmt.Println("4. Ustaw nowe hasło z linku")
	fmt.Println("5. Wyjście")
	fmt.Print("\nWybierz (1-5): ")

	switch cli.readLine() {
	case "1":
		cli.loginFlow()
	case "2":
		cli.registerFlow()
	case "3":
		cli.forgotPasswordFlow()
	case "4":
		cli.recoveryFlow()
	case "5", "":
		fmt.Printf("%s✓ Do zobaczenia!%s\n", colorGreen, colorReset)
		return false
	default:
		fmt.Printf("%s⚠ Nieprawidłowy wybór.%s\n", colorYellow, colorReset)
	}
	return true
}

func (cli *CLI) loginFlow() {
	fmt.Printf("\n%s=== Logowanie ===%s\n", colorCyan, colorReset)
	fmt.Print("E-mail: ")
	email := cli.readLine()
	fmt.Print("Hasło: ")
	password := cli.readLine()

	fmt.Printf("%s⏳ Logowanie...%s\n", colorBlue, colorReset)
	if err := cli.flow.Login(cli.ctx, email, password); err != nil {
		cli.authFailed("login", err)
		return
	}
	fmt.Printf("%s✓ Zalogowano%s\n", colorGreen, colorReset)
}

func (cli *CLI) registerFlow() {
	fmt.Printf("\n%s=== Rejestracja ===%s\n", colorCyan, colorReset)
	fmt.Print("E-mail: ")
	email := cli.readLine()
	fmt.Printf("Hasło (min. %d znaków): ", config.MinPasswordLength)
	password := cli.readLine()
	fmt.Print("Powtórz hasło: ")
	confirm := cli.readLine()

	if err := cli.flow.Register(cli.ctx, email, password, confirm); err != nil {
		cli.authFailed("register", err)
		return
	}
	if cli.flow.State() == authflow.StateAwaitingConfirmation {
		fmt.Printf("%s✉ %s%s\n", colorBlue, cli.flow.Message(), colorReset)
		cli.flow.Reset()
		return
	}
	fmt.Printf("%s✓ Konto utworzone, zalogowano%s\n", colorGreen, colorReset)
}

func (cli *CLI) forgotPasswordFlow() {
	fmt.Print("E-mail: ")
	email := cli.readLine()

	redirectTo := cli.cfg.APIBaseURL + "/auth/reset"
	if err := cli.flow.RequestPasswordReset(cli.ctx, email, redirectTo); err != nil {
		cli.authFailed("password reset request", err)
		return
	}
	fmt.Printf("%s✉ %s%s\n", colorBlue, cli.flow.Message(), colorReset)
	fmt.Println("Skopiuj adres z wiadomości i wybierz \"Ustaw nowe hasło z linku\".")
}

func (cli *CLI) recoveryFlow() {
	fmt.Print("Link z wiadomości e-mail: ")
	link := cli.readLine()
	fmt.Printf("Nowe hasło (min. %d znaków): ", config.MinPasswordLength)
	password := cli.readLine()
	fmt.Print("Powtórz hasło: ")
	confirm := cli.readLine()

	if err := cli.flow.CompleteRecovery(cli.ctx, link, password, confirm); err != nil {
		cli.authFailed("password recovery", err)
		return
	}
	fmt.Printf("%s✓ %s%s\n", colorGreen, cli.catalog.Message(i18n.ResetPasswordUpdated), colorReset)
}

func (cli *CLI) changePasswordFlow() {
	fmt.Printf("Nowe hasło (min. %d znaków): ", config.MinPasswordLength)
	password := cli.readLine()
	fmt.Print("Powtórz hasło: ")
	confirm := cli.readLine()

	if err := cli.flow.ChangePassword(cli.ctx, password, confirm); err != nil {
		cli.logger.Warn("password change failed", "error", err)
		fmt.Printf("%s❌ %s%s\n", colorRed, err.Error(), colorReset)
		return
	}
	fmt.Printf("%s✓ %s%s\n", colorGreen, cli.flow.Message(), colorReset)
}

// authFailed reports a failed pre-login flow and returns it to anonymous.
func (cli *CLI) authFailed(op string, err error) {
	cli.logger.Warn(op+" failed", "state", cli.flow.State(), "error", err)
	fmt.Printf("%s❌ %s%s\n", colorRed, err.Error(), colorReset)
	cli.flow.Reset()
}

func (cli *CLI) logout() {
	if err := cli.client.EndSession(cli.ctx); err != nil {
		cli.logger.Warn("logout failed", "error", err)
	}
	cli.flow.Reset()
	cli.workspace.Reset()
	fmt.Printf("%s✓ Wylogowano%s\n", colorGreen, colorReset)
}

func (cli *CLI) listFlow() {
	fmt.Print("Szukaj (Enter = wszystkie): ")
	search := cli.readLine()
	fmt.Print("Strona (Enter = 1): ")
	page, _ := strconv.Atoi(cli.readLine())

	result, err := cli.client.ListFlashcards(cli.ctx, api.ListParams{Page: page, PageSize: 10, Search: search})
	if err != nil {
		cli.printError(err, i18n.FlashcardsUnexpected)
		return
	}

	if result.Total == 0 {
		fmt.Printf("%sBrak fiszek.%s\n", colorYellow, colorReset)
		return
	}
	fmt.Printf("\n%sStrona %d/%d, razem %d%s\n", colorBlue, result.Page, result.TotalPages, result.Total, colorReset)
	for _, card := range result.Data {
		subject := ""
		if card.Subject != nil {
			subject = " [" + *card.Subject + "]"
		}
		fmt.Printf("• %s%s%s%s\n  → %s\n  %s%s%s\n", colorCyan, card.Front, colorReset, subject, card.Back, colorYellow, card.ID, colorReset)
	}
}

func (cli *CLI) createFlow() {
	fmt.Print("Przód: ")
	front := cli.readLine()
	fmt.Print("Tył: ")
	back := cli.readLine()
	fmt.Print("Temat (opcjonalny): ")
	subject := cli.readLine()

	req := services.CreateFlashcardRequest{Front: front, Back: back}
	if subject != "" {
		req.Subject = &subject
	}

	card, err := cli.client.CreateFlashcard(cli.ctx, req)
	if err != nil {
		if apiErr, ok := api.AsAPIError(err); ok && apiErr.Problem.Type == domain.ConflictLimitExceeded {
			fmt.Printf("%s❌ %s%s\n", colorRed, cli.catalog.Message(i18n.FlashcardsLimitReached, config.MaxFlashcardsPerUser), colorReset)
			return
		}
		cli.printError(err, i18n.FlashcardsCreateFailed)
		return
	}
	fmt.Printf("%s✓ Dodano fiszkę %s%s\n", colorGreen, card.ID, colorReset)
	cli.refetch()
}

func (cli *CLI) editFlow() {
	fmt.Print("ID fiszki: ")
	id := cli.readLine()
	fmt.Print("Nowy przód (Enter = bez zmian): ")
	front := cli.readLine()
	fmt.Print("Nowy tył (Enter = bez zmian): ")
	back := cli.readLine()
	fmt.Print("Nowy temat (Enter = bez zmian, \"-\" = usuń): ")
	subject := cli.readLine()

	fields := map[string]any{}
	if front != "" {
		fields["front"] = front
	}
	if back != "" {
		fields["back"] = back
	}
	switch subject {
	case "":
	case "-":
		fields["subject"] = nil
	default:
		fields["subject"] = subject
	}

	card, err := cli.client.UpdateFlashcard(cli.ctx, id, fields, false)
	if err != nil {
		cli.printError(err, i18n.FlashcardsUpdateFailed)
		return
	}
	fmt.Printf("%s✓ Zaktualizowano: %s → %s%s\n", colorGreen, card.Front, card.Back, colorReset)
	cli.refetch()
}

func (cli *CLI) deleteFlow() {
	fmt.Print("ID fiszki: ")
	id := cli.readLine()
	fmt.Print("Na pewno usunąć? Tej operacji nie można cofnąć. (t/n): ")
	if strings.ToLower(cli.readLine()) != "t" {
		return
	}

	if err := cli.client.DeleteFlashcard(cli.ctx, id); err != nil {
		cli.printError(err, i18n.FlashcardsDeleteFailed)
		return
	}
	fmt.Printf("%s✓ Usunięto%s\n", colorGreen, colorReset)
	cli.refetch()
}

func (cli *CLI) generateFlow() {
	fmt.Println("Tekst źródłowy (zakończ pustą linią):")
	var lines []string
	for {
		line := cli.readLine()
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	fmt.Print("Liczba kart (1-20, Enter = 5): ")
	maxCards, err := strconv.Atoi(cli.readLine())
	if err != nil {
		maxCards = 5
	}
	fmt.Print("Temat (opcjonalny): ")
	subject := cli.readLine()

	fmt.Printf("%s⏳ Generuję fiszki...%s\n", colorBlue, colorReset)
	st, err := cli.workspace.Dispatch(cli.ctx, generate.GenerateAction{Request: generate.Request{
		SourceText: strings.Join(lines, "\n"),
		Max:        maxCards,
		Subject:    subject,
	}})
	if err != nil {
		fmt.Printf("%s❌ %s%s\n", colorRed, st.Error, colorReset)
		return
	}

	for {
		st = cli.workspace.Snapshot()
		selected := make(map[int]bool, len(st.Selected))
		for _, i := range st.Selected {
			selected[i] = true
		}

		fmt.Println()
		for i, p := range st.Proposals {
			mark := "[ ]"
			if selected[i] {
				mark = "[x]"
			}
			fmt.Printf("%d. %s %s\n     → %s\n", i+1, mark, p.Front, p.Back)
		}
		fmt.Print("\nNumer = zaznacz/odznacz, e<numer> = edytuj, z = zapisz, a = anuluj: ")

		input := cli.readLine()
		switch {
		case input == "a":
			cli.workspace.Dispatch(cli.ctx, generate.ResetAction{})
			return
		case input == "z":
			st, err := cli.workspace.Dispatch(cli.ctx, generate.SaveSelectedAction{})
			if err != nil {
				fmt.Printf("%s❌ %s%s\n", colorRed, st.Error, colorReset)
				cli.workspace.ClearError()
				continue
			}
			fmt.Printf("%s✓ Zapisano %d fiszek%s\n", colorGreen, len(selected), colorReset)
			cli.refetch()
			return
		case strings.HasPrefix(input, "e"):
			n, err := strconv.Atoi(strings.TrimPrefix(input, "e"))
			if err != nil {
				continue
			}
			fmt.Print("Przód (Enter = bez zmian): ")
			front := cli.readLine()
			fmt.Print("Tył (Enter = bez zmian): ")
			back := cli.readLine()
			patch := generate.ProposalPatch{}
			if front != "" {
				patch.Front = &front
			}
			if back != "" {
				patch.Back = &back
			}
			cli.workspace.Dispatch(cli.ctx, generate.UpdateProposalAction{Index: n - 1, Patch: patch})
		default:
			if n, err := strconv.Atoi(input); err == nil {
				cli.workspace.Dispatch(cli.ctx, generate.ToggleSelectAction{Index: n - 1})
			}
		}
	}
}

// refetch waits out store lag and shows the first page again.
func (cli *CLI) refetch() {
	if err := cli.client.WaitForRefetch(cli.ctx); err != nil {
		return
	}
	result, err := cli.client.ListFlashcards(cli.ctx, api.ListParams{Limit: 5})
	if err != nil {
		cli.logger.Warn("refetch failed", "error", err)
		return
	}
	fmt.Printf("%sMasz teraz %d fiszek.%s\n", colorBlue, result.Total, colorReset)
}

// printError shows the problem detail when the server sent one, otherwise
// the fallback message.
func (cli *CLI) printError(err error, fallbackKey string) {
	cli.logger.Error("request failed", "error", err)
	msg := cli.catalog.Message(fallbackKey)
	if apiErr, ok := api.AsAPIError(err); ok && apiErr.Detail() != "" {
		msg = apiErr.Detail()
	}
	fmt.Printf("%s❌ %s%s\n", colorRed, msg, colorReset)
}

func (cli *CLI) readLine() string {
	if !cli.scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(cli.scanner.Text())
}

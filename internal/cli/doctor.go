package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"strider/internal/browser"
	"strider/internal/config"
	"strider/internal/schedule"
	"strider/internal/server"
)

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose system health",
		Long: `Run diagnostic checks on your strider installation.

This command checks:
- Configuration file validity
- Model provider credentials
- Database accessibility
- Site map and schedule files
- Server status`,
		RunE: runDoctor,
	}

	return cmd
}

type checkResult struct {
	name    string
	status  string // ok, warning, error
	message string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	fmt.Println("Strider Doctor")
	fmt.Println("==============")
	fmt.Println()

	cfg := cliCtx.Config

	var results []checkResult
	results = append(results, checkSystemInfo())
	results = append(results, checkConfigFile(cliCtx))
	results = append(results, checkProvider(cfg))
	results = append(results, checkDataDirectory(cliCtx))
	results = append(results, checkSiteMap(cfg))
	results = append(results, checkScheduleFile(cliCtx))
	results = append(results, checkServerConnectivity(cfg))

	fmt.Println()
	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		icon := "✓"
		if r.status == "warning" {
			icon = "⚠️"
			hasWarnings = true
		} else if r.status == "error" {
			icon = "✗"
			hasErrors = true
		}

		fmt.Printf("%s %s: %s\n", icon, r.name, r.message)
	}

	fmt.Println()
	if hasErrors {
		fmt.Println("❌ Some checks failed. Please address the issues above.")
		return nil
	} else if hasWarnings {
		fmt.Println("⚠️  Some warnings detected. Your setup should work but may have issues.")
	} else {
		fmt.Println("✅ All checks passed! Strider is ready to use.")
	}

	return nil
}

func checkSystemInfo() checkResult {
	return checkResult{
		name:   "System",
		status: "ok",
		message: fmt.Sprintf("Go %s on %s/%s",
			runtime.Version(),
			runtime.GOOS,
			runtime.GOARCH,
		),
	}
}

func checkConfigFile(cliCtx *CLIContext) checkResult {
	configPath := cliCtx.ConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return checkResult{
				name:    "Config File",
				status:  "error",
				message: fmt.Sprintf("Cannot determine config path: %v", err),
			}
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return checkResult{
			name:    "Config File",
			status:  "warning",
			message: fmt.Sprintf("Not found: %s (run: strider init)", configPath),
		}
	}

	if _, err := config.Load(configPath); err != nil {
		return checkResult{
			name:    "Config File",
			status:  "error",
			message: fmt.Sprintf("Invalid config: %v", err),
		}
	}

	return checkResult{
		name:    "Config File",
		status:  "ok",
		message: fmt.Sprintf("Found: %s", configPath),
	}
}

func checkProvider(cfg *config.Config) checkResult {
	// Building the launcher exercises the same provider path a run uses.
	launcher, err := server.NewLauncher(cfg, zerolog.Nop())
	if err != nil {
		return checkResult{
			name:    "Provider",
			status:  "error",
			message: fmt.Sprintf("%v (run: strider auth login)", err),
		}
	}

	name := launcher.Provider().Name()

	key := cfg.Anthropic.APIKey
	if name == "openai" {
		key = cfg.OpenAI.APIKey
	}

	return checkResult{
		name:    "Provider",
		status:  "ok",
		message: fmt.Sprintf("%s configured (%s)", name, maskToken(key)),
	}
}

func checkDataDirectory(cliCtx *CLIContext) checkResult {
	dataPath := cliCtx.StoragePath
	if dataPath == "" {
		var err error
		dataPath, err = config.DefaultDataPath()
		if err != nil {
			return checkResult{
				name:    "Data Directory",
				status:  "error",
				message: fmt.Sprintf("Cannot determine data path: %v", err),
			}
		}
	}

	dir := filepath.Dir(dataPath)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return checkResult{
			name:    "Data Directory",
			status:  "warning",
			message: fmt.Sprintf("Will be created: %s", dir),
		}
	}

	testFile := filepath.Join(dir, ".strider-test")
	if err := os.WriteFile(testFile, []byte("test"), 0600); err != nil {
		return checkResult{
			name:    "Data Directory",
			status:  "error",
			message: fmt.Sprintf("Cannot write to: %s", dir),
		}
	}
	os.Remove(testFile)

	if info, err := os.Stat(dataPath); err == nil {
		sizeMB := float64(info.Size()) / 1024 / 1024
		return checkResult{
			name:    "Data Directory",
			status:  "ok",
			message: fmt.Sprintf("Found: %s (database: %.2f MB)", dir, sizeMB),
		}
	}

	return checkResult{
		name:    "Data Directory",
		status:  "ok",
		message: fmt.Sprintf("Ready: %s (database will be created on first run)", dir),
	}
}

func checkSiteMap(cfg *config.Config) checkResult {
	if cfg.Browser.SiteFile == "" {
		return checkResult{
			name:    "Site Map",
			status:  "warning",
			message: "Not configured (browser.site_file), runs will see an empty site",
		}
	}

	sitePath, err := config.ExpandPath(cfg.Browser.SiteFile)
	if err != nil {
		return checkResult{
			name:    "Site Map",
			status:  "error",
			message: fmt.Sprintf("Invalid path: %v", err),
		}
	}

	if _, err := os.Stat(sitePath); os.IsNotExist(err) {
		return checkResult{
			name:    "Site Map",
			status:  "error",
			message: fmt.Sprintf("Not found: %s", sitePath),
		}
	}

	pages, err := browser.LoadSite(sitePath)
	if err != nil {
		return checkResult{
			name:    "Site Map",
			status:  "error",
			message: fmt.Sprintf("Invalid site map: %v", err),
		}
	}

	return checkResult{
		name:    "Site Map",
		status:  "ok",
		message: fmt.Sprintf("Found: %s (%d pages)", sitePath, len(pages)),
	}
}

func checkScheduleFile(cliCtx *CLIContext) checkResult {
	if !cliCtx.Config.Schedule.Enabled {
		return checkResult{
			name:    "Schedule",
			status:  "ok",
			message: "Disabled",
		}
	}

	path, err := tasksFilePath(cliCtx)
	if err != nil {
		return checkResult{
			name:    "Schedule",
			status:  "error",
			message: fmt.Sprintf("Cannot resolve tasks file: %v", err),
		}
	}

	tasks, err := schedule.LoadTasks(path)
	if err != nil {
		return checkResult{
			name:    "Schedule",
			status:  "error",
			message: fmt.Sprintf("Invalid tasks file: %v", err),
		}
	}

	enabled := 0
	for _, t := range tasks {
		if !t.Disabled {
			enabled++
		}
	}

	return checkResult{
		name:    "Schedule",
		status:  "ok",
		message: fmt.Sprintf("%s (%d tasks, %d enabled)", path, len(tasks), enabled),
	}
}

func checkServerConnectivity(cfg *config.Config) checkResult {
	host := cfg.Gateway.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Gateway.Port
	if port == 0 {
		port = 8080
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://%s:%d/api/v1/health", host, port)

	resp, err := client.Get(url)
	if err != nil {
		return checkResult{
			name:    "Server",
			status:  "warning",
			message: "Not running. Start with: strider serve",
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return checkResult{
			name:    "Server",
			status:  "warning",
			message: fmt.Sprintf("Responded with status %d on port %d", resp.StatusCode, port),
		}
	}

	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err == nil {
		if status, ok := health["status"].(string); ok {
			return checkResult{
				name:    "Server",
				status:  "ok",
				message: fmt.Sprintf("Running on port %d (status: %s)", port, status),
			}
		}
	}

	return checkResult{
		name:    "Server",
		status:  "ok",
		message: fmt.Sprintf("Running on port %d", port),
	}
}

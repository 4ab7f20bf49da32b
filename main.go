package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/hivedesk/portal/config"
	"github.com/hivedesk/portal/database"
	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/web"
	"github.com/hivedesk/portal/web/service"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func initLogger() {
	level, err := logger.ParseLevel(config.GetLogLevel())
	if err != nil {
		log.Fatal(err)
	}
	logger.InitLogger(level)
}

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())
	initLogger()

	if err := database.InitDB(config.GetDBPath()); err != nil {
		log.Fatal(err)
	}

	server := web.NewServer()
	if err := server.Start(); err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("Received SIGHUP, restarting web server")
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer()
			if err := server.Start(); err != nil {
				log.Println(err)
				return
			}
		default:
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			if err := database.CloseDB(); err != nil {
				logger.Warning("close database err:", err)
			}
			return
		}
	}
}

func addAccount(email, name, password string) {
	if err := database.InitDB(config.GetDBPath()); err != nil {
		fmt.Println(err)
		return
	}
	defer database.CloseDB()

	accounts := &service.AccountService{}
	account, err := accounts.Register(context.Background(), email, name, password)
	if err != nil {
		fmt.Println("add account failed:", err)
		return
	}
	fmt.Printf("account %s added (id %s)\n", account.Email, account.Id)
}

func listAccounts() {
	if err := database.InitDB(config.GetDBPath()); err != nil {
		fmt.Println(err)
		return
	}
	defer database.CloseDB()

	var accounts []model.Account
	if err := database.GetDB().Order("email").Find(&accounts).Error; err != nil {
		fmt.Println("list accounts failed:", err)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tNAME\tID")
	for _, a := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Email, a.Name, a.Id)
	}
	w.Flush()
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	var rootCmd = &cobra.Command{
		Use:     "hivedesk",
		Short:   "HiveDesk HR onboarding portal",
		Version: config.GetVersion(),
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var accountCmd = &cobra.Command{
		Use:   "account",
		Short: "Manage local sign-in accounts",
	}

	var addCmd = &cobra.Command{
		Use:   "add",
		Short: "Add a local account",
		Run: func(cmd *cobra.Command, args []string) {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			addAccount(email, name, password)
		},
	}
	addCmd.Flags().String("email", "", "account email; addresses containing \"hr\" sign in as HR")
	addCmd.Flags().String("name", "", "display name")
	addCmd.Flags().String("password", "", "account password")
	_ = addCmd.MarkFlagRequired("email")
	_ = addCmd.MarkFlagRequired("password")

	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "List local accounts",
		Run: func(cmd *cobra.Command, args []string) {
			listAccounts()
		},
	}

	accountCmd.AddCommand(addCmd, listCmd)
	rootCmd.AddCommand(runCmd, accountCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

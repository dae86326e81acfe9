package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/latchwork/gatekeeper/internal/config"
	"github.com/latchwork/gatekeeper/internal/log"
	"github.com/latchwork/gatekeeper/pkg/actuator"
	"github.com/latchwork/gatekeeper/pkg/auth"
	"github.com/latchwork/gatekeeper/pkg/events"
	"github.com/latchwork/gatekeeper/pkg/ingest"
	"github.com/latchwork/gatekeeper/pkg/store"
	"github.com/latchwork/gatekeeper/pkg/unlock"
	"github.com/latchwork/gatekeeper/pkg/web"
)

var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "Safe controller with three-factor unlock and motion monitoring",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller",
	RunE:  runServe,
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the first admin account",
	RunE:  runBootstrap,
}

var (
	bootstrapName  string
	bootstrapEmail string
	bootstrapPIN   string
)

func init() {
	cobra.OnInitialize(func() {
		config.LoadDotEnv()
		log.Init(config.LogLevel())
	})

	bootstrapCmd.Flags().StringVar(&bootstrapName, "name", "", "Admin display name")
	bootstrapCmd.Flags().StringVar(&bootstrapEmail, "email", "", "Admin email")
	bootstrapCmd.Flags().StringVar(&bootstrapPIN, "pin", "", "Admin PIN (4+ digits)")
	bootstrapCmd.MarkFlagRequired("email")
	bootstrapCmd.MarkFlagRequired("pin")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(bootstrapCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := store.NewWithFile(config.DataFile())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	signer, err := auth.LoadSigner(config.TokenKeyFile())
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}

	emitter := events.New(st)
	defer emitter.Close()

	hub := ingest.NewHub(emitter)
	servo := actuator.NewServo(config.ActuatorURL())
	machine := unlock.NewMachine(st, emitter, servo)

	server := web.NewServer(config.ListenPort(), st, machine, hub, signer)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()

	log.Info("gatekeeper starting",
		"port", config.ListenPort(),
		"data", config.DataFile(),
		"actuator", config.ActuatorURL(),
	)
	return server.Start()
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	if len(bootstrapPIN) < unlock.MinPINLength {
		return fmt.Errorf("PIN must be at least %d digits", unlock.MinPINLength)
	}

	st, err := store.NewWithFile(config.DataFile())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(bootstrapPIN), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash PIN: %w", err)
	}

	name := bootstrapName
	if name == "" {
		name = bootstrapEmail
	}
	u, err := st.CreateUser(store.User{
		Name:    name,
		Email:   bootstrapEmail,
		IsAdmin: true,
		PINHash: string(hash),
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Printf("Created admin %s (%s)\n", u.Email, u.ID)
	fmt.Println("Enroll face and voice through /api/setup before unlocking.")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

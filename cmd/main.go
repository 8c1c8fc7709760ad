/*
Copyright 2024 RPA Technologies Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	studycafe "github.com/rpatechnologies/study-cafe-api"
	"github.com/rpatechnologies/study-cafe-api/config"
	"github.com/rpatechnologies/study-cafe-api/database"
	"github.com/rpatechnologies/study-cafe-api/internal/notification"
)

// StudyCafe represents the CLI application, encapsulating the root Cobra command.
type StudyCafe struct {
	cmd *cobra.Command // Root command for the CLI application
}

// serviceInstance holds the service instance and its configuration.
// This is used to store the runtime instance and configuration globally within the application.
type serviceInstance struct {
	service *studycafe.StudyCafe  // Service object initialized from configuration
	cnf     *config.Configuration // Configuration object holding runtime settings
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec) // Log the recovered panic
		os.Exit(1)        // Exit the program with an error status
	}
}

// preRun sets up the configuration and initializes the service instance before running any command.
func preRun(app *serviceInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		// Initialize configuration from the specified configuration file.
		err := config.InitConfig("study-cafe.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		// Fetch the configuration settings.
		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		// Initialize the service using the fetched configuration.
		newService, err := setupService(cnf)
		if err != nil {
			notification.NotifyError(err) // Notify via the internal notification system
			log.Fatal(err)                // Log the fatal error
		}

		// Assign the new service instance and configuration to the app struct.
		app.service = newService
		app.cnf = cnf

		return nil
	}
}

// setupService creates and initializes a new service instance based on the provided configuration.
// It connects to the data source (such as a database) using the configuration settings.
func setupService(cfg *config.Configuration) (*studycafe.StudyCafe, error) {
	// Initialize a new data source from the configuration.
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	// Create a new service instance using the initialized data source.
	newService, err := studycafe.NewStudyCafe(db)
	if err != nil {
		return nil, fmt.Errorf("error creating service: %v", err)
	}
	return newService, nil
}

// NewCLI creates the command-line interface (CLI) for the order service.
// It sets up the root command and subcommands like serverCommands, workerCommands, and migrateCommands.
func NewCLI() *StudyCafe {
	var configFile string   // Configuration file path (defaults to ./study-cafe.json)
	b := &serviceInstance{} // Instance to be passed into commands

	// Define the root command with usage and description.
	var rootCmd = &cobra.Command{
		Use:   "study-cafe",
		Short: "Course and membership order service",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	// Add a persistent flag to the root command for specifying the config file.
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./study-cafe.json", "Configuration file for the order service")

	// Set the persistent pre-run hook to initialize the app and config before executing any command.
	rootCmd.PersistentPreRunE = preRun(b)

	// Add various subcommands to the root command.
	rootCmd.AddCommand(serverCommands(b))  // Command for starting the server
	rootCmd.AddCommand(workerCommands(b))  // Command for the outbox worker
	rootCmd.AddCommand(migrateCommands(b)) // Command for database/schema migrations
	rootCmd.AddCommand(configCommands())   // Command for printing computed config

	return &StudyCafe{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w StudyCafe) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err) // Print any errors that occur
		os.Exit(1)                   // Exit the program with an error status
	}
}

// main is the main function and the entry point for the application.
func main() {
	defer recoverPanic() // Ensure that any panic is handled gracefully

	cli := NewCLI()  // Create the CLI application
	cli.executeCLI() // Execute the CLI commands
}

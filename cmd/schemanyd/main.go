package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/schemanyd/schemanyd/internal/config"
	"github.com/schemanyd/schemanyd/internal/connector"
	"github.com/schemanyd/schemanyd/internal/reflector"
	"github.com/schemanyd/schemanyd/internal/utils"
	"github.com/schemanyd/schemanyd/pkg/models"
	"github.com/schemanyd/schemanyd/pkg/schemanyd"
	"github.com/schemanyd/schemanyd/pkg/source"
	"github.com/schemanyd/schemanyd/pkg/storage"
)

func main() {
	var (
		configFile  string
		schemaFile  string
		inputFile   string
		host        string
		user        string
		password    string
		database    string
		port        string
		driver      string
		separatorRF string
		separatorRR string
		strict      bool
		dryRun      bool
		analyzeOnly bool
		envFile     string
		logLevel    string
	)

	rootCmd := &cobra.Command{
		Use:   "schemanyd",
		Short: "A tool to insert denormalized tabular data into a normalized relational schema",
		Long: `Schemanyd

A Go tool that reads flat tabular input (CSV) and writes it into a
normalized relational schema. A column mapping names the destination
column of each input column, optionally through a chain of foreign-key
relations; the insertion order, key propagation, and duplicate
detection are derived from the schema itself.`,
		Run: func(cmd *cobra.Command, args []string) {
			// Setup logging
			logger := utils.SetupLogging(logLevel)

			// Load environment variables
			utils.LoadEnvironmentVariables(envFile, logger)

			// Load run configuration
			cfg, err := config.LoadFile(configFile)
			if err != nil {
				logger.Errorf("Failed to load config file %s: %v", configFile, err)
				os.Exit(1)
			}
			if len(cfg.Mapping) == 0 {
				logger.Error("Config file defines no column mapping")
				os.Exit(1)
			}

			// Flags override the config file
			if schemaFile == "" {
				schemaFile = cfg.SchemaFile
			}
			if driver != "" {
				cfg.Database.Type = driver
			}
			if separatorRF == "" {
				separatorRF = cfg.SeparatorRF
			}
			if separatorRR == "" {
				separatorRR = cfg.SeparatorRR
			}
			strict = strict || cfg.Strict

			// Flags beat the config file for connection parameters too; the
			// connector itself falls back to the MYSQL_* environment.
			if host == "" {
				host = cfg.Database.Host
			}
			if user == "" {
				user = cfg.Database.Username
			}
			if password == "" {
				password = cfg.Database.Password
			}
			if database == "" {
				database = cfg.Database.DatabaseName
			}
			if port == "" && cfg.Database.Port != 0 {
				port = fmt.Sprintf("%d", cfg.Database.Port)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Obtain the schema description: from a static YAML file, or by
			// reflecting the live MySQL schema.
			var desc *models.Description
			var mysqlDB *connector.DatabaseConnector
			if schemaFile != "" {
				desc, err = models.LoadDescription(schemaFile)
				if err != nil {
					logger.Errorf("Failed to load schema description %s: %v", schemaFile, err)
					os.Exit(1)
				}
			} else {
				mysqlDB = connector.NewDatabaseConnector(host, user, password, database, port, logger)
				if err := mysqlDB.Connect(ctx); err != nil {
					logger.Errorf("Failed to connect to database: %v", err)
					os.Exit(1)
				}
				defer mysqlDB.Disconnect()

				desc, err = reflector.New(mysqlDB, logger).Describe(ctx)
				if err != nil {
					logger.Errorf("Failed to reflect schema: %v", err)
					os.Exit(1)
				}
			}

			// Build the schema graph
			graph, err := schemanyd.BuildGraph(desc, logger)
			if err != nil {
				logger.Errorf("Failed to build schema graph: %v", err)
				os.Exit(1)
			}

			// Print schema analysis
			utils.PrintSchemaAnalysis(graph)

			// If analyze-only mode, exit here
			if analyzeOnly {
				logger.Info("Analyze-only mode, exiting without inserting data")
				return
			}

			// Select the storage executor
			var exec storage.Executor
			switch {
			case dryRun:
				logger.Info("Dry-run mode, writing to in-memory storage")
				exec = storage.NewMemory()
			default:
				drv, dsn, err := config.BuildDriverAndDSN(cfg.Database)
				if err != nil {
					logger.Errorf("Failed to resolve database driver: %v", err)
					os.Exit(1)
				}
				switch drv {
				case "memory":
					exec = storage.NewMemory()
				case "mysql":
					if mysqlDB == nil {
						mysqlDB = connector.NewDatabaseConnector(host, user, password, database, port, logger)
						if err := mysqlDB.Connect(ctx); err != nil {
							logger.Errorf("Failed to connect to database: %v", err)
							os.Exit(1)
						}
						defer mysqlDB.Disconnect()
					}
					exec = storage.NewSQLExecutor(mysqlDB.DB)
				case "postgres":
					pool, err := pgxpool.New(ctx, dsn)
					if err != nil {
						logger.Errorf("Failed to create Postgres pool: %v", err)
						os.Exit(1)
					}
					defer pool.Close()
					exec = storage.NewPgxExecutor(pool)
				default:
					logger.Errorf("Unsupported storage driver: %s", drv)
					os.Exit(1)
				}
			}

			// Open the input rows
			rows, err := source.NewCSVFile(inputFile)
			if err != nil {
				logger.Errorf("Failed to open input file %s: %v", inputFile, err)
				os.Exit(1)
			}

			// Run the insertion
			s := schemanyd.New(graph, exec, logger)
			if separatorRF != "" {
				s.SeparatorRF = separatorRF
			}
			if separatorRR != "" {
				s.SeparatorRR = separatorRR
			}
			s.Strict = strict

			logger.Info("Starting insertion run...")
			report, err := s.Insert(ctx, cfg.Mapping, rows)
			if err != nil && report == nil {
				logger.Errorf("Insertion run failed: %v", err)
				os.Exit(1)
			}
			if err != nil {
				logger.Warningf("Insertion run interrupted: %v", err)
			}

			// Print summary
			utils.PrintInsertSummary(report)

			// Return appropriate exit code
			if len(report.FailedRows()) > 0 {
				os.Exit(1)
			}
		},
	}

	// Define flags
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "schemanyd.yaml", "Path to the run configuration file")
	rootCmd.Flags().StringVarP(&schemaFile, "schema-file", "s", "", "Static YAML schema description (skips live reflection)")
	rootCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Path to the CSV input file")
	rootCmd.Flags().StringVarP(&host, "host", "H", "", "MySQL host (default: localhost)")
	rootCmd.Flags().StringVarP(&user, "user", "u", "", "MySQL user (default: root)")
	rootCmd.Flags().StringVarP(&password, "password", "p", "", "MySQL password")
	rootCmd.Flags().StringVarP(&database, "database", "d", "", "MySQL database name")
	rootCmd.Flags().StringVarP(&port, "port", "P", "", "MySQL port (default: 3306)")
	rootCmd.Flags().StringVar(&driver, "driver", "", "Storage driver (mysql, postgres, memory)")
	rootCmd.Flags().StringVar(&separatorRF, "separator-rf", "", "Separator between relation chain and field (default: .)")
	rootCmd.Flags().StringVar(&separatorRR, "separator-rr", "", "Separator between relation segments (default: /)")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "Fail rows whose mapped columns cover no uniqueness constraint")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and plan against in-memory storage without touching the database")
	rootCmd.Flags().BoolVarP(&analyzeOnly, "analyze-only", "a", false, "Only analyze the schema graph without inserting data")
	rootCmd.Flags().StringVarP(&envFile, "env-file", "e", ".env", "Path to .env file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")

	if err := rootCmd.MarkFlagRequired("input"); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

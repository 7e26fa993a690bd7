// Package config provides configuration management for vecops.
//
// # Key Features
//
// - Config: one structure shared by the kernel, the IO layer and the CLI
// - Structured sections: Kernel, Logging, Metrics, Tracing, IO
// - Environment variable substitution with ${VAR_NAME} syntax
// - Automatic defaults and validation
//
// # Usage
//
// ## Loading a file
//
//	cfg, err := config.LoadFile("vecops.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	kernel := vecops.New(vecops.WithConfig(cfg.Kernel))
//
// ## Environment Variable Substitution
//
//	# vecops.yaml
//	logging:
//	  level: ${VECOPS_LOG_LEVEL}
//	kernel:
//	  parallelism: 8
//
// The CLI additionally layers VECOPS_* environment variables and command
// line flags over the file through viper.
package config

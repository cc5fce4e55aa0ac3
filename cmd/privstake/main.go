/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"os"

	"private-stake-go/internal/common"
	"private-stake-go/internal/config"
	"private-stake-go/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if err := newRootCmd().Execute(); err != nil {
		loggerCleanup()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "privstake",
		Short:        "Stake and unstake from a private balance through one-time burner accounts",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newStakeCmd(),
		newUnstakeCmd(),
		newTopUpCmd(),
		newBalancesCmd(),
		newBurnerCmd(),
		newRecoverCmd(),
		newOperationsCmd(),
		newSweeperCmd(),
	)
	return rootCmd
}

// openServices loads configuration and opens the owner session.
func openServices(cmd *cobra.Command) (*common.Services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return common.InitializeServices(cmd.Context(), cfg)
}

func loadConfig() (*models.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Error("Failed to load configuration", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}

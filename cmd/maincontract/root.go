package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xssnick/tonutils-go/tlb"
)

type rootOptions struct {
	configPath string
	envFile    string
	artifact   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "maincontract",
		Short:         "Deploy and interact with a main contract instance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.toml", "path to the TOML config")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "env file with the wallet seed phrase")
	cmd.PersistentFlags().StringVar(&opts.artifact, "artifact", "", "compiled contract, overrides Contract.Artifact")

	cmd.AddCommand(
		newAddressCmd(opts),
		newDeployCmd(opts),
		newIncrementCmd(opts),
		newDepositCmd(opts),
		newWithdrawCmd(opts),
		newDataCmd(opts),
	)
	return cmd
}

func newAddressCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the contract address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			state, err := s.contract.State(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", s.contract.Address.String(), state.Status)
			return nil
		},
	}
}

func newDeployCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the contract with a deposit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			state, err := s.contract.State(cmd.Context())
			if err != nil {
				return err
			}
			if state.Active() {
				s.lggr.Infow("Contract already deployed", "contract", s.contract.Address.String())
				return nil
			}
			msg, err := s.contract.SendDeposit(cmd.Context(), s.sender, s.value)
			if err != nil {
				return err
			}
			return s.report("Deploy", msg)
		},
	}
}

func newIncrementCmd(opts *rootOptions) *cobra.Command {
	var by uint32
	cmd := &cobra.Command{
		Use:   "increment",
		Short: "Increment the counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			msg, err := s.contract.SendIncrement(cmd.Context(), s.sender, s.value, by)
			if err != nil {
				return err
			}
			return s.report("Increment", msg)
		},
	}
	cmd.Flags().Uint32Var(&by, "by", 1, "amount to add to the counter")
	return cmd
}

func newDepositCmd(opts *rootOptions) *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit TON into the contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, err := tlb.FromTON(amount)
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}
			s, err := newSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			msg, err := s.contract.SendDeposit(cmd.Context(), s.sender, value)
			if err != nil {
				return err
			}
			return s.report("Deposit", msg)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "1", "TON to deposit")
	return cmd
}

func newWithdrawCmd(opts *rootOptions) *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw TON from the contract to the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, err := tlb.FromTON(amount)
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}
			s, err := newSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			msg, err := s.contract.SendWithdrawalRequest(cmd.Context(), s.sender, s.value, value)
			if err != nil {
				return err
			}
			return s.report("Withdraw", msg)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "TON to withdraw")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newDataCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "data",
		Short: "Print the contract storage and balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			data, err := s.contract.GetData(cmd.Context())
			if err != nil {
				return err
			}
			balance, err := s.contract.GetBalance(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "number:        %d\n", data.Number)
			fmt.Fprintf(out, "recent sender: %s\n", data.RecentSender.String())
			fmt.Fprintf(out, "owner:         %s\n", data.OwnerAddress.String())
			fmt.Fprintf(out, "balance:       %s TON\n", tlb.FromNanoTON(balance).String())
			return nil
		},
	}
}

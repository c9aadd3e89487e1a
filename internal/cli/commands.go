package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/spaces/internal/di"
	"github.com/aristath/spaces/internal/modules/spaces"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var includeHidden bool

	cmd := &cobra.Command{
		Use:   "list ACCOUNT_ID",
		Short: "List the spaces of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				list, err := c.LifecycleService.ListSpaces(cmd.Context(), args[0], includeHidden)
				if err != nil {
					return err
				}
				return opts.print(list)
			})
		},
	}
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "Include hidden spaces")
	return cmd
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		spaceType string
		main      bool
	)

	cmd := &cobra.Command{
		Use:   "create ACCOUNT_ID [NAME]",
		Short: "Create a space, or the main space with --main",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !main && len(args) != 2 {
				return fmt.Errorf("a space name is required unless --main is set")
			}
			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				var (
					space *spaces.Space
					err   error
				)
				if main {
					space, err = c.LifecycleService.CreateMainSpace(cmd.Context(), args[0])
				} else {
					space, err = c.LifecycleService.CreateSpace(cmd.Context(), spaces.CreateSpaceRequest{
						AccountID: args[0],
						Name:      args[1],
						Type:      spaces.SpaceType(strings.ToUpper(spaceType)),
					})
				}
				if err != nil {
					return err
				}
				return opts.print(space)
			})
		},
	}
	cmd.Flags().StringVar(&spaceType, "type", string(spaces.SpaceTypeCustom), "Space type")
	cmd.Flags().BoolVar(&main, "main", false, "Create the account's main space")
	return cmd
}

func newAdjustCmd(opts *rootOptions) *cobra.Command {
	var (
		reason    string
		entryType string
	)

	cmd := &cobra.Command{
		Use:   "adjust SPACE_ID AMOUNT",
		Short: "Apply a signed amount to a space balance",
		Long: `Apply a signed amount to a space balance. The entry type defaults to
DEPOSIT for positive amounts and WITHDRAWAL for negative ones.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := spaces.ParseAmount("amount", args[1])
			if err != nil {
				return err
			}

			typ := spaces.EntryType(strings.ToUpper(entryType))
			if typ == "" {
				typ = spaces.EntryTypeDeposit
				if amount.IsNegative() {
					typ = spaces.EntryTypeWithdrawal
				}
			}

			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				space, err := c.BalanceService.ApplyDelta(cmd.Context(), spaces.ApplyDeltaRequest{
					SpaceID: args[0],
					Amount:  amount,
					Reason:  reason,
					Type:    typ,
				})
				if err != nil {
					return err
				}
				return opts.print(space)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual adjustment", "Ledger reason")
	cmd.Flags().StringVar(&entryType, "type", "", "Ledger entry type")
	return cmd
}

func newSetBalanceCmd(opts *rootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "set-balance SPACE_ID AMOUNT",
		Short: "Override a space balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := spaces.ParseAmount("balance", args[1])
			if err != nil {
				return err
			}
			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				space, err := c.BalanceService.SetAbsoluteBalance(cmd.Context(), args[0], amount, reason)
				if err != nil {
					return err
				}
				return opts.print(space)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "balance correction", "Ledger reason")
	return cmd
}

func newFreezeCmd(opts *rootOptions, freeze bool) *cobra.Command {
	use, short := "freeze SPACE_ID", "Freeze a space"
	if !freeze {
		use, short = "unfreeze SPACE_ID", "Unfreeze a space"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				var (
					space *spaces.Space
					err   error
				)
				if freeze {
					space, err = c.FreezeService.Freeze(cmd.Context(), args[0])
				} else {
					space, err = c.FreezeService.Unfreeze(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				return opts.print(space)
			})
		},
	}
}

func newTransferCmd(opts *rootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "transfer FROM_SPACE_ID TO_SPACE_ID AMOUNT",
		Short: "Move value between two spaces of one account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := spaces.ParseAmount("amount", args[2])
			if err != nil {
				return err
			}
			ref := uuid.NewString()

			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				result, err := c.TransferService.Transfer(cmd.Context(), spaces.TransferRequest{
					FromSpaceID: args[0],
					ToSpaceID:   args[1],
					Amount:      amount,
					Reason:      reason,
					ReferenceID: &ref,
				})
				if err != nil {
					return err
				}
				return opts.print(result)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual transfer", "Ledger reason")
	return cmd
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		days   int
		endStr string
		rank   bool
	)

	cmd := &cobra.Command{
		Use:   "report ID",
		Short: "Print analytics for a space, or rank an account's spaces with --rank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			end := time.Now().UTC()
			if endStr != "" {
				parsed, err := time.Parse(time.RFC3339, endStr)
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				end = parsed
			}
			start := end.AddDate(0, 0, -days)

			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				if rank {
					ranking, err := c.AnalyticsService.RankSpaces(cmd.Context(), args[0], start, end)
					if err != nil {
						return err
					}
					return opts.print(ranking)
				}
				report, err := c.AnalyticsService.ComputeReport(cmd.Context(), args[0], start, end)
				if err != nil {
					return err
				}
				return opts.print(report)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Window length in days")
	cmd.Flags().StringVar(&endStr, "end", "", "Window end (RFC3339, default now)")
	cmd.Flags().BoolVar(&rank, "rank", false, "Treat ID as an account and rank its spaces")
	return cmd
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [ACCOUNT_ID]",
		Short: "Check that space balances add up to the account total",
		Long: `Check the balance invariant for one account, or for every account when
no account is given. Exits non-zero when any account is inconsistent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				var reports []*spaces.InvariantReport
				if len(args) == 1 {
					report, err := c.BalanceService.VerifyAccountInvariant(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					reports = append(reports, report)
				} else {
					var err error
					reports, err = c.BalanceService.CheckAllAccounts(cmd.Context())
					if err != nil {
						return err
					}
				}

				if err := opts.print(reports); err != nil {
					return err
				}

				inconsistent := 0
				for _, r := range reports {
					if !r.Consistent {
						inconsistent++
					}
				}
				if inconsistent > 0 {
					return fmt.Errorf("%d account(s) inconsistent", inconsistent)
				}
				return nil
			})
		},
	}
}

func newAutoTransferCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run-auto-transfers",
		Short: "Execute every automatic transfer that is due now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(c *di.Container) error {
				run, err := c.AutoTransferService.RunDue(cmd.Context(), time.Now().UTC())
				if err != nil {
					return err
				}
				return opts.print(run)
			})
		},
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clearstack/clearflow/internal/types"
)

var submitCmd = &cobra.Command{
	Use:   "submit <document-type-id>",
	Short: "Submit a new clearance request",
	Long: `Submit a new clearance request for a document type. The stage sequence is
copied from the document type at submission and stays fixed for the life of
the request.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		req, err := newHandler(s).Submit(cmd.Context(), currentActor().ID, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(req)
		}
		if !quietFlag {
			fmt.Printf("Submitted request %s (stage: %s)\n", req.ID, req.CurrentStage())
		}
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve the current stage of a request",
	Long: `Approve the current stage of a pending request. The acting role must own
the stage (or be a super role). Approving the final stage completes the
request and triggers certificate generation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		req, err := newHandler(s).Approve(cmd.Context(), args[0], currentActor())
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(req)
		}
		if quietFlag {
			return nil
		}
		if req.IsCompleted {
			fmt.Printf("Request %s fully cleared\n", req.ID)
		} else {
			fmt.Printf("Approved. Request %s now at stage %s\n", req.ID, req.CurrentStage())
		}
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <request-id>",
	Short: "Reject the current stage, placing the request on hold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		req, err := newHandler(s).Reject(cmd.Context(), args[0], currentActor(), reason)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(req)
		}
		if !quietFlag {
			fmt.Printf("Request %s on hold at stage %s: %s\n", req.ID, req.CurrentStage(), req.RejectionReason)
		}
		return nil
	},
}

var resubmitCmd = &cobra.Command{
	Use:   "resubmit <request-id>",
	Short: "Resubmit an on-hold request at its current stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		req, err := newHandler(s).Resubmit(cmd.Context(), args[0], currentActor().ID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(req)
		}
		if !quietFlag {
			fmt.Printf("Request %s pending again at stage %s\n", req.ID, req.CurrentStage())
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <request-id>",
	Short: "Delete a request that has not completed",
	Long: `Permanently delete a pending or on-hold request along with its escalation
history. Completed requests are permanent records and cannot be deleted.
Only the requester may delete their own request.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		if err := newHandler(s).Delete(cmd.Context(), args[0], currentActor().ID); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]string{"deleted": args[0]})
		}
		if !quietFlag {
			fmt.Printf("Deleted request %s\n", args[0])
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Show one request in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		req, err := s.GetRequest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(req)
		}
		printRequest(req)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := types.RequestFilter{}
		if v, _ := cmd.Flags().GetString("status"); v != "" {
			status := types.Status(v)
			if !status.IsValid() {
				return fmt.Errorf("invalid status %q (pending, on_hold, completed)", v)
			}
			filter.Status = &status
		}
		filter.RequesterID, _ = cmd.Flags().GetString("requester")
		filter.DocumentTypeID, _ = cmd.Flags().GetString("doctype")
		if cmd.Flags().Changed("escalated") {
			v, _ := cmd.Flags().GetBool("escalated")
			filter.Escalated = &v
		}
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		requests, err := s.ListRequests(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(requests)
		}
		if len(requests) == 0 {
			fmt.Println("No requests found")
			return nil
		}
		for _, req := range requests {
			printRequestLine(req)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <request-id>",
	Short: "Show the escalation history of a request, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		// Surface a not-found for the request itself, not an empty ledger.
		if _, err := s.GetRequest(cmd.Context(), args[0]); err != nil {
			return err
		}
		entries, err := s.ListEscalations(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No escalations recorded")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  level %d  by %-12s %s\n",
				e.CreatedAt.Local().Format(time.RFC3339), e.Level, e.EscalatedBy, e.Reason)
		}
		return nil
	},
}

func init() {
	rejectCmd.Flags().String("reason", "", "Why the request is being rejected")
	_ = rejectCmd.MarkFlagRequired("reason")

	listCmd.Flags().String("status", "", "Filter by status (pending, on_hold, completed)")
	listCmd.Flags().String("requester", "", "Filter by requester ID")
	listCmd.Flags().String("doctype", "", "Filter by document type ID")
	listCmd.Flags().Bool("escalated", false, "Filter by escalated flag")
	listCmd.Flags().Int("limit", 0, "Maximum rows to return")

	rootCmd.AddCommand(submitCmd, approveCmd, rejectCmd, resubmitCmd, deleteCmd,
		showCmd, listCmd, historyCmd)
}

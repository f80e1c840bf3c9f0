package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var workflowHeaders = []string{"ID", "USER", "TYPE", "STATUS", "RETRIES", "TITLE", "CREATED"}

func workflowRow(w WorkflowResponse) []string {
	return []string{
		w.ID,
		w.UserID,
		w.ContentType,
		w.Status,
		fmt.Sprintf("%d/%d", w.RetryCount, w.MaxRetries),
		w.Title,
		w.CreatedAt,
	}
}

// NewWorkflowCmd создаёт группу команд для управления workflows.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Manage publishing workflows",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowCreateCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowStartCmd(clientFn, outputFn),
		newWorkflowCancelCmd(clientFn, outputFn),
		newWorkflowRetryCmd(clientFn, outputFn),
		newWorkflowPreviewCmd(clientFn, outputFn),
	)

	return cmd
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListWorkflowsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			workflows, err := clientFn().ListWorkflows(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(workflows))
			for i, w := range workflows {
				rows[i] = workflowRow(w)
			}

			outputFn().Print(workflowHeaders, rows, workflows)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "Filter by user ID")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (pending, processing, completed, failed, cancelled)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "Maximum number of workflows")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of workflows to skip")

	return cmd
}

func newWorkflowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		req         CreateWorkflowRequest
		contentFile string
		at          string
		start       bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workflow",
		Long: `Create a publishing workflow.

The body is taken from --content or read from --file ("-" reads stdin).
With --start the workflow is started right away; with --at it waits
until the given RFC 3339 time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFile != "" {
				body, err := readContent(contentFile)
				if err != nil {
					return err
				}
				req.Content = body
			}
			if req.Content == "" {
				return errors.New("content is required: use --content or --file")
			}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				req.ScheduledPublishTime = t.Format(time.RFC3339)
			}

			wf, err := clientFn().CreateWorkflow(req, start)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Workflow created: %s", wf.ID))
			out.Print(workflowHeaders, [][]string{workflowRow(*wf)}, wf)
			if wf.StartError != nil {
				return fmt.Errorf("workflow %s created but not started: %s", wf.ID, wf.StartError.Message)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.UserID, "user", "", "User ID (required)")
	f.StringVar(&req.ConnectionID, "connection", "", "CMS connection ID (required)")
	f.StringVar(&req.Title, "title", "", "Post title (required)")
	f.StringVar(&req.Content, "content", "", "Post body (HTML)")
	f.StringVar(&contentFile, "file", "", "Read post body from file")
	f.StringVar(&req.ContentType, "type", "", "Content type: blog_post, article, tutorial, faq, documentation")
	f.StringSliceVar(&req.Tags, "tags", nil, "Comma-separated tags")
	f.StringSliceVar(&req.Categories, "categories", nil, "Comma-separated categories")
	f.BoolVar(&req.PublishImmediately, "publish", false, "Publish instead of saving as draft")
	f.StringVar(&at, "at", "", "Scheduled publish time (RFC 3339)")
	f.StringVar(&req.SEOTitle, "seo-title", "", "SEO title")
	f.StringVar(&req.SEODescription, "seo-description", "", "SEO description")
	f.StringVar(&req.FeaturedImageURL, "image", "", "Featured image URL")
	f.IntVar(&req.MaxRetries, "max-retries", 0, "Automatic retry limit (0 = server default)")
	f.BoolVar(&start, "start", false, "Start the workflow immediately")

	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("connection")
	_ = cmd.MarkFlagRequired("title")
	cmd.MarkFlagsMutuallyExclusive("content", "file")

	return cmd
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Show workflow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := clientFn().GetWorkflow(args[0])
			if err != nil {
				return err
			}

			rows := [][]string{
				{"ID", wf.ID},
				{"User", wf.UserID},
				{"Connection", wf.ConnectionID},
				{"Title", wf.Title},
				{"Type", wf.ContentType},
				{"Status", wf.Status},
				{"Publish", strconv.FormatBool(wf.PublishImmediately)},
				{"Scheduled", wf.ScheduledPublishTime},
				{"Retries", fmt.Sprintf("%d/%d (manual: %d)", wf.RetryCount, wf.MaxRetries, wf.ManualRetries)},
				{"External ID", wf.ExternalID},
				{"Link", wf.Link},
				{"Error", wf.ErrorMessage},
				{"Created", wf.CreatedAt},
				{"Updated", wf.UpdatedAt},
				{"Completed", wf.CompletedAt},
			}

			outputFn().Print([]string{"FIELD", "VALUE"}, rows, wf)
			return nil
		},
	}
}

func newWorkflowStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "start <workflow-id>",
		Short: "Start a pending workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := clientFn().StartWorkflow(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Workflow started: %s", wf.ID))
			out.Print(workflowHeaders, [][]string{workflowRow(*wf)}, wf)
			return nil
		},
	}
}

func newWorkflowCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <workflow-id>",
		Short: "Cancel a pending or processing workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := clientFn().CancelWorkflow(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			if res.Cancelled {
				out.Success(fmt.Sprintf("Workflow cancelled: %s", res.Workflow.ID))
			} else {
				out.Success(fmt.Sprintf("Workflow already %s, nothing to cancel", res.Workflow.Status))
			}
			out.Print(workflowHeaders, [][]string{workflowRow(res.Workflow)}, res)
			return nil
		},
	}
}

func newWorkflowRetryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <workflow-id>",
		Short: "Manually retry a failed workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := clientFn().RetryWorkflow(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Workflow restarted: %s", wf.ID))
			out.Print(workflowHeaders, [][]string{workflowRow(*wf)}, wf)
			return nil
		},
	}
}

func newWorkflowPreviewCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var showBody bool

	cmd := &cobra.Command{
		Use:   "preview <workflow-id>",
		Short: "Show the processed content without publishing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := clientFn().PreviewWorkflow(args[0])
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Title", p.Title},
				{"Status", p.Status},
				{"Excerpt", p.Excerpt},
				{"Tags", strings.Join(p.Tags, ", ")},
				{"Categories", strings.Join(p.Categories, ", ")},
				{"SEO title", p.SEOTitle},
				{"SEO description", p.SEODescription},
				{"Featured media", p.FeaturedMedia},
			}
			if showBody {
				rows = append(rows, []string{"Content", p.Content})
			}

			outputFn().Print([]string{"FIELD", "VALUE"}, rows, p)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showBody, "body", false, "Include the processed body")
	return cmd
}

func readContent(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(data), nil
}

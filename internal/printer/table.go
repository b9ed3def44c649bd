package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/slok/reviewdata/internal/model"
)

// TablePrinter prints review data in a human friendly format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintSprint prints the sprint review details.
func (t *TablePrinter) PrintSprint(sprint model.Sprint, current bool) error {
	fmt.Fprintf(t.writer, "Sprint:     %d (%s)\n", sprint.ID, sprint.Name)
	status := string(sprint.Status)
	if current {
		status += ", current"
	}
	fmt.Fprintf(t.writer, "Status:     %s\n", status)
	if sprint.StartDate != "" || sprint.EndDate != "" {
		fmt.Fprintf(t.writer, "Dates:      %s - %s\n", sprint.StartDate, sprint.EndDate)
	}
	if sprint.ClosedAt != nil {
		fmt.Fprintf(t.writer, "Closed:     %s\n", FormatTimestamp(*sprint.ClosedAt))
	}

	t.printGoals("Goals", "G", sprint.Goals)
	t.printGoals("Side goals", "S", sprint.SideGoals)

	t.printNote("Achievements", sprint.Achievements)
	t.printNote("Next sprint plans", sprint.NextSprintPlans)

	return nil
}

func (t *TablePrinter) printGoals(title, prefix string, goals []model.Goal) {
	if len(goals) == 0 {
		return
	}

	fmt.Fprintf(t.writer, "\n%s:\n", title)
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTAG\tTITLE\tDONE\tTASKS\tCOMMENTS")
	for _, g := range goals {
		fmt.Fprintf(tw, "%s%d\t%s\t%s\t%d%%\t%d/%d\t%d\n",
			prefix, g.ID, g.Tag, g.Title, g.CompletionPercent, g.TaskStats.Done, g.TaskStats.Total, len(g.Comments))
	}
	tw.Flush()

	for _, g := range goals {
		for _, c := range g.Comments {
			fmt.Fprintf(t.writer, "  [%s%d] %s (%s, %s): %s\n", prefix, g.ID, c.Author, c.ID, TimeAgo(c.CreatedAt), c.Text)
		}
	}
}

func (t *TablePrinter) printNote(title, markdown string) {
	if strings.TrimSpace(markdown) == "" {
		return
	}

	fmt.Fprintf(t.writer, "\n%s:\n", title)
	for _, l := range strings.Split(strings.TrimRight(markdown, "\n"), "\n") {
		fmt.Fprintf(t.writer, "  %s\n", l)
	}
}

// PrintComment prints a single comment.
func (t *TablePrinter) PrintComment(comment model.Comment) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", comment.ID)
	fmt.Fprintf(t.writer, "Author:     %s\n", comment.Author)
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(comment.CreatedAt))
	if comment.UpdatedAt != nil {
		fmt.Fprintf(t.writer, "Updated:    %s\n", FormatTimestamp(*comment.UpdatedAt))
	}
	fmt.Fprintf(t.writer, "Text:       %s\n", comment.Text)

	return nil
}

// PrintMediaList prints media files in a table format.
func (t *TablePrinter) PrintMediaList(files []model.MediaFile) error {
	if len(files) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "NAME\tSIZE\tVERSION")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, FormatBytes(f.Size), shortVersion(f.Version))
	}

	return nil
}

// PrintOperationResults prints the outcome of a batch of operations.
func (t *TablePrinter) PrintOperationResults(results []OperationResult) error {
	if len(results) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tOPERATION\tID\tRESULT")
	for i, r := range results {
		id := r.ID
		if id == "" {
			id = "-"
		}
		result := "ok"
		if r.Err != nil {
			result = r.Err.Error()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, r.Type, id, result)
	}

	return nil
}

// PrintRateLimit prints the outbound API quota.
func (t *TablePrinter) PrintRateLimit(info model.RateLimitInfo) error {
	if info.UpdatedAt.IsZero() {
		fmt.Fprintln(t.writer, "No rate limit information yet")
		return nil
	}

	fmt.Fprintf(t.writer, "Remaining:  %d/%d\n", info.Remaining, info.Limit)
	fmt.Fprintf(t.writer, "Reset:      %s (%s)\n", FormatTimestamp(info.ResetAt), TimeUntil(info.ResetAt))

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func shortVersion(v string) string {
	if len(v) > 7 {
		return v[:7]
	}
	return v
}

package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/services"
)

var now = time.Now

// Record asks for a new evaluation and stores it locally. It never waits
// for the server.
func (a *App) Record(ctx context.Context) error {
	locID, err := a.askID("Location id", 0, true)
	if err != nil {
		return err
	}
	tplID, err := a.askID("Checklist template id (empty for none)", 0, false)
	if err != nil {
		return err
	}
	date, err := a.askDate("Evaluation date YYYY-MM-DD (empty for today)", now())
	if err != nil {
		return err
	}

	items, err := a.askItems(ctx, tplID, nil)
	if err != nil {
		return err
	}

	notes, err := GetMultiline(a.reader, "Notes", a.out)
	if err != nil {
		return err
	}

	companyID := a.user.CompanyID
	if loc, err := a.refs.Location(ctx, locID); err == nil {
		companyID = loc.CompanyID
	}

	id, err := a.recorder.Record(ctx, services.RecordInput{
		LocationID:          locID,
		EvaluatorID:         a.user.ID,
		CompanyID:           companyID,
		ChecklistTemplateID: tplID,
		EvaluationDate:      date,
		Items:               items,
		Notes:               notes,
	})
	if err != nil {
		return err
	}

	printlnFn("Recorded", id)
	return nil
}

// Edit changes an existing evaluation; an empty answer keeps the current
// value.
func (a *App) Edit(ctx context.Context, clientID string) error {
	e, _, err := a.recorder.Get(ctx, clientID)
	if err != nil {
		return err
	}

	date, err := a.askDate(fmt.Sprintf("Evaluation date [%s]", e.EvaluationDate.Format(models.DateLayout)), e.EvaluationDate)
	if err != nil {
		return err
	}

	items, err := a.askItems(ctx, e.ChecklistTemplateID, e.Items)
	if err != nil {
		return err
	}

	notes, err := GetMultiline(a.reader, "Notes (empty keeps current)", a.out)
	if err != nil {
		return err
	}
	if notes == "" {
		notes = e.Notes
	}

	_, err = a.recorder.Record(ctx, services.RecordInput{
		ClientID:            e.ClientID,
		LocationID:          e.LocationID,
		EvaluatorID:         e.EvaluatorID,
		CompanyID:           e.CompanyID,
		ChecklistTemplateID: e.ChecklistTemplateID,
		EvaluationDate:      date,
		Items:               items,
		Notes:               notes,
	})
	if err != nil {
		return err
	}

	printlnFn("Updated", e.ClientID)
	return nil
}

// List prints local evaluations, optionally limited to [from] [to].
func (a *App) List(ctx context.Context, args []string) error {
	var f models.EvaluationFilter
	var err error

	if len(args) > 0 {
		if f.From, err = time.Parse(models.DateLayout, args[0]); err != nil {
			return fmt.Errorf("bad from date: %w", err)
		}
	}
	if len(args) > 1 {
		if f.To, err = time.Parse(models.DateLayout, args[1]); err != nil {
			return fmt.Errorf("bad to date: %w", err)
		}
	}

	list, err := a.recorder.List(ctx, f)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		printlnFn("No evaluations")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tLOCATION\tEVALUATOR\tSTATE")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ClientID, e.EvaluationDate.Format(models.DateLayout), e.LocationName, e.EvaluatorName, identityLabel(e.Identity))
	}
	return tw.Flush()
}

// Show prints one evaluation with its sync state.
func (a *App) Show(ctx context.Context, clientID string) error {
	e, q, err := a.recorder.Get(ctx, clientID)
	if err != nil {
		return err
	}

	w := a.out
	fmt.Fprintf(w, "ID:         %s\n", e.ClientID)
	fmt.Fprintf(w, "State:      %s\n", identityLabel(e.Identity))
	fmt.Fprintf(w, "Date:       %s\n", e.EvaluationDate.Format(models.DateLayout))
	fmt.Fprintf(w, "Location:   %s (#%d)\n", e.LocationName, e.LocationID)
	fmt.Fprintf(w, "Company:    %s (#%d)\n", e.CompanyName, e.CompanyID)
	fmt.Fprintf(w, "Evaluator:  %s (#%d)\n", e.EvaluatorName, e.EvaluatorID)
	if e.ChecklistTemplateID != 0 {
		fmt.Fprintf(w, "Checklist:  %s (#%d)\n", e.TemplateName, e.ChecklistTemplateID)
	}
	for _, it := range e.Items {
		fmt.Fprintf(w, "  %s / %s: %d %s\n", it.Category, it.Item, it.Rating, it.Comment)
		for _, s := range it.SubItems {
			fmt.Fprintf(w, "    %s: %d\n", s.Name, s.Rating)
		}
	}
	if e.Notes != "" {
		fmt.Fprintf(w, "Notes:\n%s\n", e.Notes)
	}
	if q != nil {
		fmt.Fprintf(w, "Queue:      %s %s, attempt %d of %d\n", q.Operation, q.Status, q.Attempts, q.AttemptLimit)
		if q.LastError != "" {
			fmt.Fprintf(w, "Last error: %s\n", q.LastError)
		}
		if q.Status == models.QueueStatusPending && q.Attempts > 0 {
			fmt.Fprintf(w, "Next try:   %s\n", q.NextAttemptAt.Local().Format(time.DateTime))
		}
	}
	return nil
}

func identityLabel(id models.Identity) string {
	switch v := id.(type) {
	case models.Synced:
		return fmt.Sprintf("synced #%d", v.ServerID)
	case models.PendingUpdate:
		return fmt.Sprintf("pending update #%d", v.ServerID)
	case models.Pending:
		return "pending"
	default:
		return "unknown"
	}
}

func (a *App) askID(prompt string, current int64, required bool) (int64, error) {
	s, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return 0, err
	}
	if s == "" {
		if required && current == 0 {
			return 0, fmt.Errorf("%w: %s is required", services.ErrInvalidInput, strings.ToLower(prompt))
		}
		return current, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not an id", services.ErrInvalidInput, s)
	}
	return id, nil
}

func (a *App) askDate(prompt string, def time.Time) (time.Time, error) {
	s, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return time.Time{}, err
	}
	if s == "" {
		return def, nil
	}
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", services.ErrInvalidInput, s)
	}
	return d, nil
}

// askItems collects ratings: item by item along the checklist template when
// there is one, otherwise as free lines. current supplies the answers kept
// on an empty reply.
func (a *App) askItems(ctx context.Context, tplID int64, current []models.ItemResult) ([]models.ItemResult, error) {
	if tplID == 0 {
		lines, err := GetLines(a.reader, "Items as Category/Item=Rating [comment], sub-items as Category/Item/Name=Rating", a.out)
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			return current, nil
		}
		return parseItemLines(lines)
	}

	tpl, err := a.refs.Template(ctx, tplID)
	if err != nil {
		return nil, fmt.Errorf("%w: checklist template %d", services.ErrUnknownReference, tplID)
	}

	prev := make(map[string]models.ItemResult, len(current))
	for _, it := range current {
		prev[it.Category+"/"+it.Item] = it
	}

	var items []models.ItemResult
	for _, cat := range tpl.Categories {
		for _, name := range cat.Items {
			old, had := prev[cat.Name+"/"+name]
			prompt := fmt.Sprintf("%s / %s rating %d-%d [comment]", cat.Name, name, models.MinRating, models.MaxRating)
			if had {
				prompt += fmt.Sprintf(" (current %d)", old.Rating)
			}
			s, err := getSimpleText(a.reader, prompt, a.out)
			if err != nil {
				return nil, err
			}
			if s == "" {
				if had {
					items = append(items, old)
				}
				continue
			}
			rating, comment, err := parseRating(s)
			if err != nil {
				return nil, err
			}
			items = append(items, models.ItemResult{Category: cat.Name, Item: name, Rating: rating, Comment: comment})
		}
	}
	return items, nil
}

// parseItemLines reads "Category/Item=Rating [comment]" lines. A line with
// three path parts adds a sub-item rating to its item.
func parseItemLines(lines []string) ([]models.ItemResult, error) {
	var items []models.ItemResult
	index := map[string]int{}

	for _, line := range lines {
		path, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q has no '='", services.ErrInvalidInput, line)
		}
		parts := strings.Split(strings.TrimSpace(path), "/")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		rating, comment, err := parseRating(value)
		if err != nil {
			return nil, err
		}

		switch len(parts) {
		case 2:
			index[parts[0]+"/"+parts[1]] = len(items)
			items = append(items, models.ItemResult{Category: parts[0], Item: parts[1], Rating: rating, Comment: comment})
		case 3:
			i, ok := index[parts[0]+"/"+parts[1]]
			if !ok {
				return nil, fmt.Errorf("%w: sub-item %q before its item", services.ErrInvalidInput, path)
			}
			items[i].SubItems = append(items[i].SubItems, models.SubItemRating{Name: parts[2], Rating: rating})
		default:
			return nil, fmt.Errorf("%w: %q is not Category/Item", services.ErrInvalidInput, path)
		}
	}
	return items, nil
}

func parseRating(s string) (int, string, error) {
	s = strings.TrimSpace(s)
	num, comment, _ := strings.Cut(s, " ")
	r, err := strconv.Atoi(num)
	if err != nil {
		return 0, "", fmt.Errorf("%w: rating %q is not a number", services.ErrInvalidRating, num)
	}
	return r, strings.TrimSpace(comment), nil
}

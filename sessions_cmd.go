package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamscape-app/dreamscape/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sleep sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

var sessionsEventsCmd = &cobra.Command{
	Use:   "events SESSION_ID",
	Short: "Show the cue events of one session, in play order",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionEvents,
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded sessions and cue events",
	Args:  cobra.NoArgs,
	RunE:  runSessionsClear,
}

func init() {
	sessionsCmd.AddCommand(sessionsEventsCmd, sessionsClearCmd)
}

func statusStyle(s session.Status) string {
	switch s {
	case session.StatusCompleted:
		return okStyle.Render(string(s))
	case session.StatusCancelled:
		return warnStyle.Render(string(s))
	default:
		return string(s)
	}
}

func runSessions(*cobra.Command, []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.sessions.GetSessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println(subtle("No sessions recorded yet."))
		return nil
	}

	sorted := make([]session.Session, 0, len(sessions))
	for _, s := range sessions {
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartedAt.After(sorted[j].StartedAt) })

	fmt.Println(headerStyle.Render("Sessions"))
	for _, s := range sorted {
		duration := ""
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Printf("  %s  %s  %s\n",
			s.StartedAt.Format("2006-01-02 15:04"),
			statusStyle(s.Status),
			subtle(fmt.Sprintf("%s · %d/%d cues · %s", s.ID, len(s.CueIDsPlayed), len(s.PlannedCueIDs), duration)))
		if s.Notes != "" {
			fmt.Printf("      %s\n", subtle(s.Notes))
		}
	}
	return nil
}

func runSessionEvents(_ *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.sessions.GetCueEvents(args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println(subtle("No events for this session."))
		return nil
	}

	for i, ev := range events {
		id := ev.CueID
		if id == "" {
			id = ev.ItemID
		}
		line := fmt.Sprintf("%3d  %s  %s  %s", i+1, ev.Timestamp.Format("15:04:05"), ev.Status, id)
		if ev.Status == session.EventSuppressed && ev.SuppressedReason != "" {
			line += subtle(" (" + string(ev.SuppressedReason) + ")")
		}
		fmt.Println(line)
	}
	return nil
}

func runSessionsClear(*cobra.Command, []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.sessions.ClearSleepData(); err != nil {
		return err
	}
	fmt.Println("Cleared all sessions and cue events.")
	return nil
}

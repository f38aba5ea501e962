package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"portalproxy-backend/internal/gradeparse"
	"portalproxy-backend/internal/scrapers/portal"
	"portalproxy-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	username      string
	studentNumber string
)

func init() {
	for _, cmd := range []*cobra.Command{loginCmd, gradesCmd} {
		cmd.Flags().StringVarP(&username, "username", "u", "", "The portal username.")
		cmd.Flags().StringVar(&studentNumber, "student-number", "", "Log in with a student number instead of a username.")
	}
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(gradesCmd)
}

// credentials reads the password from PORTAL_PASSWORD so it never lands in shell history.
func credentials() (portal.Credentials, error) {
	password := os.Getenv("PORTAL_PASSWORD")
	if password == "" {
		return portal.Credentials{}, fmt.Errorf("PORTAL_PASSWORD is not set")
	}
	return portal.Credentials{Username: username, Password: password}, nil
}

func printHops(hops []portal.Hop) {
	t := newTable()
	t.AppendHeader(table.Row{"Hop", "Status", "URL"})
	for _, hop := range hops {
		t.AppendRow(table.Row{hop.Index, hop.Status, hop.URL})
	}
	t.Render()
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <code> [region]",
	Short: "Finds the portal base url serving an institution.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint, err := newPortal().Resolve(cmd.Context(), descriptorFromArgs(args))
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendRows([]table.Row{
			{"Base url", endpoint.BaseUrl},
			{"Login page", endpoint.LoginPageUrl},
			{"App name", endpoint.AppName},
		})
		t.Render()
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <code> [region]",
	Short: "Logs in and prints the redirect chain and the cookies it collected.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := credentials()
		if err != nil {
			return err
		}
		d := descriptorFromArgs(args)
		d.StudentNumber = studentNumber

		session, err := newPortal().Login(cmd.Context(), d, creds)
		if err != nil {
			return err
		}

		fmt.Printf("session established with %s at %s\n", session.BaseUrl, session.EstablishedAt.Format(time.RFC1123))
		fmt.Printf("cookies: %s\n", strings.Join(session.CookieNames(), ", "))
		printHops(session.Hops)
		return nil
	},
}

func printGrades(result gradeparse.Result) {
	t := newTable()
	t.AppendHeader(table.Row{"Course", "Teacher", "Period", "Score", "Letter"})
	for _, record := range result.Records {
		score := "-"
		if record.CurrentScore != nil {
			score = fmt.Sprintf("%.2f", *record.CurrentScore)
		}
		letter := "-"
		if record.LetterGrade != nil {
			letter = *record.LetterGrade
		}
		t.AppendRow(table.Row{record.CourseName, record.Teacher, record.Period, score, letter})
	}
	t.AppendFooter(table.Row{"", "", "", "strategy", result.Strategy})
	t.Render()

	if result.Degraded() {
		fmt.Fprintln(os.Stderr, "warning: no grades could be parsed")
	}
}

var gradesCmd = &cobra.Command{
	Use:   "grades <code> [region]",
	Short: "Logs in, fetches and parses the grades of a student.",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		creds, err := credentials()
		if err != nil {
			serviceutil.Fatal("read credentials", err)
		}
		d := descriptorFromArgs(args)
		d.StudentNumber = studentNumber

		result, err := newPortal().Grades(cmd.Context(), d, creds)
		if err != nil {
			serviceutil.Fatal("fetch grades", err)
		}

		fmt.Printf("fetched %s from %s%s\n", result.Source.Format, result.Session.BaseUrl, result.Source.Path)
		printGrades(result.Result)
	},
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/interview"
	"github.com/meikuraledutech/interview/postgres"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive interview on the terminal",
	RunE:  runInterview,
}

func init() {
	runCmd.Flags().StringP("persona", "p", "", "persona id (default from config)")
	runCmd.Flags().IntP("questions", "n", 0, "number of questions (default from config)")
	runCmd.Flags().String("setting", "", "interview setting id, read from DATABASE_URL")
	runCmd.Flags().Bool("review", false, "print an evaluation after the interview")
	rootCmd.AddCommand(runCmd)
}

func runInterview(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	client := interview.NewClient(provider, cfg.RequestTimeout).WithLogger(logger)

	opts := interview.OptionsFromConfig(cfg)
	opts.Logger = logger
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer pool.Close()
		store := postgres.New(pool)
		client = client.WithStore(store)
		opts.Contexts = store
	}

	engine := interview.NewEngine(newPersonaStore(cfg), client, opts)

	personaID, _ := cmd.Flags().GetString("persona")
	questions, _ := cmd.Flags().GetInt("questions")
	settingID, _ := cmd.Flags().GetString("setting")
	session, err := engine.CreateSession(ctx, interview.SessionOptions{
		PersonaID:    personaID,
		MaxQuestions: questions,
		SettingID:    settingID,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Interviewer: %s (%d questions)\n\n", session.Persona().Name, session.MaxQuestions())

	reply, err := session.FirstQuestion(ctx)
	if err != nil {
		return err
	}
	if err := converse(ctx, session, reply, cmd.InOrStdin(), out); err != nil {
		return err
	}

	if review, _ := cmd.Flags().GetBool("review"); review {
		return printReview(ctx, session, out)
	}
	return nil
}

// converse alternates printed questions and typed answers until the session finishes.
func converse(ctx context.Context, session *interview.Session, reply interview.Reply, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		printReply(out, reply)
		if reply.Finished {
			return nil
		}

		var answer string
		for answer == "" {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return err
				}
				return errors.New("input closed before the interview finished")
			}
			answer = strings.TrimSpace(scanner.Text())
		}

		var err error
		reply, err = answerWithProgress(ctx, session, answer, out)
		if err != nil {
			return err
		}
	}
}

func answerWithProgress(ctx context.Context, session *interview.Session, answer string, out io.Writer) (interview.Reply, error) {
	task := session.AnswerAsync(ctx, answer)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-task.Done():
			return task.Wait(ctx)
		case <-ticker.C:
			fmt.Fprint(out, ".")
		}
	}
}

func printReply(out io.Writer, reply interview.Reply) {
	fmt.Fprintf(out, "\n[%d/%d] (%s) %s\n", reply.QuestionNumber, reply.TotalQuestions, reply.Expression, reply.Text)
}

func printReview(ctx context.Context, session *interview.Session, out io.Writer) error {
	review, err := session.Review(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nReview: %s\n", review.OverallReview)
	keys := make([]string, 0, len(review.Scores))
	for k := range review.Scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sc := review.Scores[k]
		fmt.Fprintf(out, "  %-24s %3d  %s\n", k, sc.Score, sc.Evaluation)
	}
	return nil
}

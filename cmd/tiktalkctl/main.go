// Command tiktalkctl is a terminal client for a running TikTalk server.
//
// Usage:
//
//	tiktalkctl [flags] languages
//	tiktalkctl [flags] chats
//	tiktalkctl [flags] new <name> [system prompt]
//	tiktalkctl [flags] rm <chat>
//	tiktalkctl [flags] history <chat>
//	tiktalkctl [flags] clear <chat>
//	tiktalkctl [flags] talk <chat>
//	tiktalkctl [flags] say <chat> <recording.wav> [reply.wav]
//	tiktalkctl [flags] correct <text>
//	tiktalkctl [flags] translate <to> <text>
//
// <chat> is a chat id or name.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/MrWong99/tiktalk/internal/correction"
)

var (
	serverURL = flag.String("server", envOr("TIKTALK_URL", "http://localhost:8080"), "TikTalk server URL")
	lang      = flag.String("lang", "", "language code or name (default: server default)")
	timeout   = flag.Duration("timeout", 2*time.Minute, "per-request timeout")
)

var (
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: tiktalkctl [flags] <command> [args]")
		fmt.Fprintln(flag.CommandLine.Output(), "commands: languages chats new rm history clear talk say correct translate")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newClient(*serverURL, *timeout)
	if err := dispatch(ctx, c, os.Stdin, os.Stdout, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, red("Error: "+err.Error()))
		os.Exit(1)
	}
}

var errUsage = errors.New("wrong number of arguments, see -h")

func dispatch(ctx context.Context, c *client, in io.Reader, out io.Writer, args []string) error {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "languages":
		langs, err := c.Languages(ctx)
		if err != nil {
			return err
		}
		for _, l := range langs {
			fmt.Fprintf(out, "%s  %s\n", boldCyan(l.Code), l.Name)
		}
	case "chats":
		chats, err := c.Chats(ctx)
		if err != nil {
			return err
		}
		if len(chats) == 0 {
			fmt.Fprintln(out, faint("no chats yet, create one with: tiktalkctl new <name>"))
		}
		for _, ch := range chats {
			fmt.Fprintf(out, "%s  %s  %s\n", boldCyan(ch.Name), ch.ID, faint(ch.CreatedAt.Local().Format(time.DateTime)))
		}
	case "new":
		if len(args) < 1 {
			return errUsage
		}
		ch, err := c.CreateChat(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created %s (%s)\n", boldGreen(ch.Name), ch.ID)
	case "rm":
		if len(args) != 1 {
			return errUsage
		}
		ch, err := c.resolveChat(ctx, args[0])
		if err != nil {
			return err
		}
		if err := c.DeleteChat(ctx, ch.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", ch.Name)
	case "clear":
		if len(args) != 1 {
			return errUsage
		}
		ch, err := c.resolveChat(ctx, args[0])
		if err != nil {
			return err
		}
		if err := c.ClearMessages(ctx, ch.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "cleared %s\n", ch.Name)
	case "history":
		if len(args) != 1 {
			return errUsage
		}
		ch, err := c.resolveChat(ctx, args[0])
		if err != nil {
			return err
		}
		msgs, err := c.Messages(ctx, ch.ID)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			printMessage(out, m)
		}
	case "talk":
		if len(args) != 1 {
			return errUsage
		}
		ch, err := c.resolveChat(ctx, args[0])
		if err != nil {
			return err
		}
		return talk(ctx, c, ch, in, out)
	case "say":
		if len(args) < 2 || len(args) > 3 {
			return errUsage
		}
		ch, err := c.resolveChat(ctx, args[0])
		if err != nil {
			return err
		}
		wav, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		t, err := c.SayAudio(ctx, ch.ID, wav, *lang)
		if err != nil {
			return err
		}
		printTurn(out, t)
		if len(args) == 3 && t.Assistant.AudioURL != "" {
			reply, err := c.Audio(ctx, t.Assistant.AudioURL)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[2], reply, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(out, faint("reply audio written to "+args[2]))
		}
	case "correct":
		if len(args) == 0 {
			return errUsage
		}
		rec, err := c.Correct(ctx, strings.Join(args, " "), *lang)
		if err != nil {
			return err
		}
		printRecord(out, rec)
	case "translate":
		if len(args) < 2 {
			return errUsage
		}
		s, err := c.Translate(ctx, strings.Join(args[1:], " "), *lang, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// talk runs a typed conversation until EOF or "exit".
func talk(ctx context.Context, c *client, ch chat, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, boldGreen("TikTalk: "+ch.Name))
	fmt.Fprintln(out, "Type your message and press Enter. Type 'exit' or press Ctrl+C to quit.")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, boldGreen("You: "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "exit") {
			return nil
		}
		t, err := c.SayText(ctx, ch.ID, text, *lang)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(out, red("Error: "+err.Error()))
			continue
		}
		printTurn(out, t)
		fmt.Fprintln(out)
	}
}

func printTurn(out io.Writer, t turn) {
	if t.Transcript != "" {
		fmt.Fprintf(out, "%s %s\n", faint("heard:"), t.Transcript)
	}
	printRecord(out, t.Record)
	fmt.Fprintf(out, "%s %s\n", boldCyan("Tutor:"), t.Reply)
}

func printRecord(out io.Writer, rec correction.Record) {
	fmt.Fprintf(out, "%s %s\n", faint("score:"), scoreColor(rec.Score))
	if rec.Rewritten != rec.Original {
		fmt.Fprintf(out, "%s %s\n", faint("better:"), rec.Rewritten)
	}
	if rec.GrammarCorrected != rec.Original {
		fmt.Fprintf(out, "%s %s\n", faint("grammar:"), rec.GrammarCorrected)
	}
	if rec.CoherenceCorrected != rec.Original {
		fmt.Fprintf(out, "%s %s\n", faint("coherence:"), rec.CoherenceCorrected)
	}
}

func scoreColor(score int) string {
	s := fmt.Sprintf("%d/100", score)
	switch {
	case score >= 80:
		return boldGreen(s)
	case score >= 50:
		return yellow(s)
	default:
		return red(s)
	}
}

// printMessage renders one stored message. System prompts are shown faint;
// user turns show what was said together with the score.
func printMessage(out io.Writer, m message) {
	var payload struct {
		Content  string `json:"content"`
		Original string `json:"original"`
		Score    int    `json:"score"`
	}
	if err := json.Unmarshal(m.Content, &payload); err != nil {
		fmt.Fprintf(out, "%s %s\n", red(m.Role+":"), err)
		return
	}
	switch m.Role {
	case "system":
		fmt.Fprintln(out, faint("system: "+payload.Content))
	case "user":
		fmt.Fprintf(out, "%s %s %s\n", boldGreen("You:"), payload.Original, scoreColor(payload.Score))
	default:
		fmt.Fprintf(out, "%s %s\n", boldCyan("Tutor:"), payload.Content)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package policies

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/rps"
	"github.com/zeu5/rps-arena/types"
)

var movesPrompt string

func init() {
	parts := make([]string, len(rps.Moves))
	for i, m := range rps.Moves {
		parts[i] = fmt.Sprintf("%s (%d)", m.Label(), i+1)
	}
	movesPrompt = "What's your move: " + strings.Join(parts, ", ") + " ? "
}

// ReadMove prompts until a valid move index is read
func ReadMove(in *bufio.Reader, out io.Writer) (rps.Move, error) {
	warn := color.New(color.FgYellow)
	for {
		fmt.Fprint(out, movesPrompt)
		line, err := in.ReadString('\n')
		input := strings.TrimSpace(line)
		if err != nil && input == "" {
			return rps.None, errors.Wrap(err, "reading move")
		}
		idx, convErr := strconv.Atoi(input)
		if convErr != nil {
			warn.Fprintf(out, "⚠️ Unrecognized input '%s'\n", input)
			continue
		}
		move, moveErr := rps.MoveFromIndex(idx - 1)
		if moveErr != nil {
			warn.Fprintf(out, "⚠️ Invalid move index '%s'\n", input)
			continue
		}
		return move, nil
	}
}

// PrintRound prints the outcome of the round observed in obs
func PrintRound(out io.Writer, obs *rps.Observation, round int) {
	fmt.Fprintf(out, "🧑 played %s\n", obs.Me.LastMove.Label())
	fmt.Fprintf(out, "🤖 played %s\n", obs.Them.LastMove.Label())
	switch {
	case obs.Me.WonLast:
		color.New(color.FgGreen).Fprintf(out, " -> 🧑 wins round #%d\n", round)
	case obs.Them.WonLast:
		color.New(color.FgRed).Fprintf(out, " -> 🤖 wins the round #%d\n", round)
	default:
		fmt.Fprintf(out, " -> round #%d is a draw\n", round)
	}
}

// Human is a console player reading moves from in
func Human(in io.Reader, out io.Writer) types.ActorImpl {
	return func(ctx context.Context, s *types.ActorSession) error {
		reader := bufio.NewReader(in)
		roundIndex := 0
		return s.Loop(ctx, func(ev types.ActorEvent) error {
			if !ev.HasObservation() {
				return nil
			}
			obs, err := rps.DecodeObservation(ev.Observation)
			if err != nil {
				return err
			}
			if roundIndex > 0 {
				PrintRound(out, obs, roundIndex)
			}
			if ev.Type != types.EventActive {
				return nil
			}
			fmt.Fprintf(out, "\n-- Round #%d --\n\n", roundIndex+1)
			move, err := ReadMove(reader, out)
			if err != nil {
				return err
			}
			action, err := rps.EncodeAction(move)
			if err != nil {
				return err
			}
			fmt.Fprint(out, "\n")
			roundIndex += 1
			return s.DoAction(action)
		})
	}
}

// Command solverworker is the Solver Worker (spec §4.2): a short-lived
// child process that reads one JSON solve request per line from stdin,
// solves it with the in-process MILP engine, and writes one JSON response
// per line to stdout. Stderr carries only human-readable diagnostics. The
// Solver Pool is the only intended caller; it owns the process's lifetime.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/smilemakc/fertiplan/internal/infrastructure/logger"
	"github.com/smilemakc/fertiplan/internal/solver"
)

type request struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	LP   string `json:"lp"`
}

type column struct {
	Primal float64 `json:"Primal"`
}

type resultResponse struct {
	Type           string            `json:"type"`
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	Columns        map[string]column `json:"columns"`
	ObjectiveValue float64           `json:"objectiveValue"`
}

type errorResponse struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

func main() {
	maxSolves := flag.Int("max-solves", 25, "solves to accept before self-terminating")
	logLevel := flag.String("log-level", "info", "diagnostic log level")
	flag.Parse()

	log := logger.Setup(*logLevel)
	log.Info().Int("max_solves", *maxSolves).Msg("solver worker starting")

	terminate := make(chan os.Signal, 1)
	signal.Notify(terminate, syscall.SIGTERM)
	go func() {
		<-terminate
		log.Info().Msg("terminating: received SIGTERM")
		os.Exit(0)
	}()

	reader := bufio.NewReaderSize(os.Stdin, 1<<20)
	writer := bufio.NewWriter(os.Stdout)
	encoder := json.NewEncoder(writer)

	log.Info().Msg("ready")

	solves := 0
	for solves < *maxSolves {
		line, err := reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			handleLine(log, encoder, writer, line)
			solves++
		}
		if err != nil {
			log.Info().Msg("terminating: stdin closed")
			return
		}
	}
	log.Info().Int("solves", solves).Msg("terminating: solve limit reached")
}

func handleLine(log zerolog.Logger, enc *json.Encoder, w *bufio.Writer, line string) {
	var req request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		log.Error().Err(err).Msg("malformed request")
		writeAndFlush(enc, w, errorResponse{Type: "error", Message: "malformed request: " + err.Error()})
		return
	}
	if req.Type != "solve" {
		writeAndFlush(enc, w, errorResponse{Type: "error", ID: req.ID, Message: "unsupported request type: " + req.Type})
		return
	}

	sol, err := solver.Solve(req.LP, time.Time{})
	if err != nil {
		log.Error().Err(err).Str("id", req.ID).Msg("solve failed")
		writeAndFlush(enc, w, errorResponse{Type: "error", ID: req.ID, Message: err.Error()})
		return
	}

	resp := resultResponse{
		Type:           "result",
		ID:             req.ID,
		Status:         capitalize(string(sol.Status)),
		Columns:        make(map[string]column, len(sol.Values)),
		ObjectiveValue: sol.Objective,
	}
	for name, v := range sol.Values {
		resp.Columns[name] = column{Primal: float64(v)}
	}
	writeAndFlush(enc, w, resp)
}

func writeAndFlush(enc *json.Encoder, w *bufio.Writer, v interface{}) {
	if err := enc.Encode(v); err != nil {
		return
	}
	w.Flush()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

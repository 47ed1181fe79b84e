// Command respond regenerates the travel response for a processed trace
// sidecar file and prints it as JSON. Useful for replaying response
// generation offline without the gateway.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/tripcast/weatherbot/internal/chat"
	"github.com/tripcast/weatherbot/internal/sidecar"
)

func main() {
	input := flag.StringP("input", "i", "", "path to a trace sidecar JSON file")
	apiKey := flag.StringP("api-key", "k", "", "LLM API key (defaults to OPENAI_API_KEY / GOOGLE_API_KEY)")
	model := flag.StringP("model", "m", "gpt-4o-mini", "model name")
	flag.Parse()

	godotenv.Load()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: respond --input <sidecar.json> [--api-key KEY] [--model NAME]")
		os.Exit(2)
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read sidecar:", err)
		os.Exit(1)
	}
	var rec sidecar.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		fmt.Fprintln(os.Stderr, "decode sidecar:", err)
		os.Exit(1)
	}

	key := *apiKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}

	var gen chat.Generator
	if key != "" {
		gen = chat.NewOpenAIGenerator(key, *model)
	}

	resp, err := chat.NewResponder(gen).FromRecord(context.Background(), &rec)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate:", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(resp)
}

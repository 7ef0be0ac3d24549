// Command zonectl is a thin smoke-test CLI over a running zoned server:
// not a bound external interface, just a way to exercise the entity
// onboarding write path without curl.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	var (
		addr           = flag.String("addr", "http://localhost:8080", "zoned server address")
		jurisdictionID = flag.String("jurisdiction", "", "jurisdiction id")
		legalName      = flag.String("legal-name", "", "entity legal name")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: zonectl [flags] <command>")
		fmt.Fprintln(os.Stderr, "commands: create-entity")
		os.Exit(2)
	}

	switch flag.Arg(0) {
	case "create-entity":
		if err := createEntity(*addr, *jurisdictionID, *legalName); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		os.Exit(2)
	}
}

func createEntity(addr, jurisdictionID, legalName string) error {
	if jurisdictionID == "" || legalName == "" {
		return fmt.Errorf("-jurisdiction and -legal-name are required")
	}

	body, err := json.Marshal(map[string]string{
		"jurisdiction_id": jurisdictionID,
		"legal_name":      legalName,
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(addr+"/v1/entities", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n%s\n", resp.Status, out)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status %s", resp.Status)
	}
	return nil
}

/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mikeb26/execguard/internal/approval"
)

// servePrompts owns the user interaction side of the approval broker.
// Without a terminal on stdin every request is denied; execguard never
// hangs a non-interactive caller on a prompt.
func servePrompts(b *approval.Broker, store approval.PolicyStore) {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	reader := bufio.NewReader(os.Stdin)

	for req := range b.Requests {
		if !interactive {
			fmt.Fprintf(os.Stderr,
				"%v: approval needed for %q but stdin is not a terminal; denying\n",
				CommandName, req.DisplayCommand)
			b.Resolve(req.ID, approval.DecisionDenied)
			continue
		}
		b.Resolve(req.ID, promptOne(reader, req, store))
	}
}

func promptOne(reader *bufio.Reader, req approval.Request,
	store approval.PolicyStore) approval.Decision {

	fmt.Fprintf(os.Stderr, "\n%v wants to run:\n\n    %v\n\n", CommandName,
		req.DisplayCommand)
	if req.Cwd != "" {
		fmt.Fprintf(os.Stderr, "  in: %v\n", req.Cwd)
	}
	if req.Escalated {
		fmt.Fprintf(os.Stderr, "  WITHOUT sandboxing\n")
	}
	if req.Justification != "" {
		fmt.Fprintf(os.Stderr, "  reason: %v\n", req.Justification)
	}

	choices := "[y]es / [a]lways this session / [n]o / a[b]ort"
	if store != nil {
		choices = "[y]es / [a]lways this session / [t]rust permanently / [n]o / a[b]ort"
	}

	for {
		fmt.Fprintf(os.Stderr, "\nAllow? %v: ", choices)
		line, err := reader.ReadString('\n')
		if err != nil {
			return approval.DecisionAbort
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return approval.DecisionApproved
		case "a", "always":
			return approval.DecisionApprovedForSession
		case "t", "trust":
			if store == nil {
				break
			}
			trustPermanently(store, req.Command)
			return approval.DecisionApprovedForSession
		case "n", "no":
			return approval.DecisionDenied
		case "b", "abort", "q", "quit":
			return approval.DecisionAbort
		}
		fmt.Fprintf(os.Stderr, "Please answer y, a, n, or b.\n")
	}
}

// trustPermanently records a durable rule for this exact invocation so
// future sessions skip the prompt.
func trustPermanently(store approval.PolicyStore, argv []string) {
	if len(argv) == 0 {
		return
	}
	id := approval.PolicyID(approval.TargetInvocation,
		approval.InvocationKey(argv[0], argv[1:]))
	store.Save(id, []approval.Action{approval.ActionExecute})
}

// pod CLI - Command line client for the pod protocol
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pod-protocol/podd/clients/go/pod"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("POD_URL")
	client := pod.NewClient(baseURL)
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "register":
		uri := ""
		if len(os.Args) > 2 {
			uri = os.Args[2]
		}
		resp, err := client.RegisterAgent(0, uri)
		exitOnError(err)
		fmt.Printf("Registered agent %s as %s\n", resp.Address, client.Identity())

	case "whoami":
		fmt.Println(client.Identity())

	case "agent":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: pod agent <owner-key>")
			os.Exit(1)
		}
		raw, err := client.GetAgent(os.Args[2])
		exitOnError(err)
		printRaw(raw)

	case "send":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: pod send <recipient-key> <payload>")
			os.Exit(1)
		}
		resp, ciphertext, err := client.SendMessage(os.Args[2], os.Args[3], 0)
		exitOnError(err)
		fmt.Printf("Message: %s\nCiphertext: %s\n", resp.Address, ciphertext)

	case "create-channel":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: pod create-channel <name> <public|private> [fee]")
			os.Exit(1)
		}
		var fee uint64
		if len(os.Args) > 4 {
			fee, _ = strconv.ParseUint(os.Args[4], 10, 64)
		}
		resp, err := client.CreateChannel(os.Args[2], "", os.Args[3], 100, fee, true)
		exitOnError(err)
		fmt.Printf("Channel: %s\n", resp.Address)

	case "join":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: pod join <channel-address>")
			os.Exit(1)
		}
		exitOnError(client.JoinChannel(os.Args[2]))
		fmt.Println("Joined")

	case "post":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: pod post <channel-address> <content>")
			os.Exit(1)
		}
		nonce := uint64(time.Now().UnixNano())
		resp, err := client.Broadcast(os.Args[2], os.Args[3], 0, nonce)
		exitOnError(err)
		fmt.Printf("Posted: %s\n", resp.Address)

	case "deposit":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: pod deposit <channel-address> <amount>")
			os.Exit(1)
		}
		amount, err := strconv.ParseUint(os.Args[3], 10, 64)
		exitOnError(err)
		exitOnError(client.Deposit(os.Args[2], amount))
		fmt.Println("Deposited")

	case "channel":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: pod channel <channel-address>")
			os.Exit(1)
		}
		raw, err := client.GetChannel(os.Args[2])
		exitOnError(err)
		printRaw(raw)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`pod CLI - agent communication protocol

Usage: pod <command> [options]

Commands:
  register [metadata-uri]              Register this key as an agent
  whoami                               Print this client's public key
  agent <owner-key>                    Fetch an agent account
  send <recipient-key> <payload>       Send an encrypted direct message
  create-channel <name> <vis> [fee]    Create a channel
  join <channel-address>               Join a channel
  post <channel-address> <content>     Broadcast to a channel
  deposit <channel-address> <amount>   Deposit into channel escrow
  channel <channel-address>            Fetch a channel account
  health                               Check server health

Environment:
  POD_URL      Server URL (default: http://localhost:8080)
  POD_CONFIG   Config directory (default: ~/.pod)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func printRaw(raw json.RawMessage) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return
	}
	printJSON(v)
}

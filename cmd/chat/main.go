// Command chat is an interactive client for a running discount-agent
// server. Each line typed is sent through POST /simulate; slash commands
// hit the operational endpoints.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jonesrussell/discount-agent/internal/api"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	user := flag.String("user", "cli_user", "user id for this session")
	platform := flag.String("platform", "instagram", "platform: instagram|tiktok|whatsapp")
	explain := flag.Bool("explain", false, "print the agent trace with each reply")
	flag.Parse()

	c := &chatClient{
		base:     strings.TrimRight(*server, "/"),
		user:     *user,
		platform: *platform,
		explain:  *explain,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	if err := c.run(); err != nil {
		fmt.Fprintln(os.Stderr, "chat failed:", err)
		os.Exit(1)
	}
}

type chatClient struct {
	base     string
	user     string
	platform string
	explain  bool
	http     *http.Client
}

func (c *chatClient) run() error {
	fmt.Println("discount-agent chat")
	fmt.Println("connected to:", c.base)
	fmt.Printf("session: platform=%s user_id=%s\n", c.platform, c.user)
	fmt.Println("type /help for commands, /quit to exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println("\nbye")
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		switch text {
		case "/quit", "/exit":
			fmt.Println("bye")
			return nil
		case "/help":
			printHelp()
		case "/health":
			c.getJSON("/health")
		case "/analytics":
			c.getJSON("/analytics/creators")
		case "/reload":
			c.postJSON("/admin/reload", nil)
		default:
			if strings.HasPrefix(text, "/") {
				fmt.Println("unknown command; /help lists the available ones")
				continue
			}
			c.simulate(text)
		}
	}
}

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  /quit or /exit   leave chat")
	fmt.Println("  /help            show this help")
	fmt.Println("  /health          show service health")
	fmt.Println("  /analytics       show creator analytics summary")
	fmt.Println("  /reload          reload campaign and templates on the server")
	fmt.Println("anything else is sent to the agent as a message")
}

// simulate sends one message through POST /simulate and prints the
// decision the way the server saw it.
func (c *chatClient) simulate(text string) {
	body, err := json.Marshal(api.SimulateRequest{
		Platform: c.platform,
		UserID:   c.user,
		Message:  text,
	})
	if err != nil {
		fmt.Println("encode request:", err)
		return
	}

	resp, err := c.http.Post(c.base+"/simulate", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Println("connection error:", err)
		fmt.Println("is the server running?")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		fmt.Printf("error %d: %s\n", resp.StatusCode, strings.TrimSpace(string(raw)))
		return
	}

	var sim api.SimulateResponse
	if err := json.NewDecoder(resp.Body).Decode(&sim); err != nil {
		fmt.Println("decode response:", err)
		return
	}

	fmt.Println("reply:", sim.Reply)
	if d := sim.Decision; d != nil {
		fmt.Printf("method: %s (confidence=%.2f)\n", d.DetectionMethod, d.DetectionConfidence)
		if d.IdentifiedCreator != "" {
			fmt.Println("creator:", d.IdentifiedCreator)
		}
		if d.DiscountCodeSent != "" {
			fmt.Println("code:", d.DiscountCodeSent)
		}
		fmt.Println("status:", d.ConversationStatus)
		if c.explain {
			for _, step := range d.Trace {
				fmt.Println("  -", step)
			}
		}
	}
	fmt.Println()
}

// getJSON fetches path and pretty-prints the JSON body.
func (c *chatClient) getJSON(path string) {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		fmt.Println("connection error:", err)
		return
	}
	defer resp.Body.Close()
	printBody(resp.Body)
}

func (c *chatClient) postJSON(path string, body []byte) {
	resp, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Println("connection error:", err)
		return
	}
	defer resp.Body.Close()
	printBody(resp.Body)
}

func printBody(r io.Reader) {
	raw, err := io.ReadAll(r)
	if err != nil {
		fmt.Println("read response:", err)
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(strings.TrimSpace(string(raw)))
		return
	}
	fmt.Println(pretty.String())
	fmt.Println()
}

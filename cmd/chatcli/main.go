// chatcli is a small terminal client for the chat API: it signs in,
// submits turns and prints the reply fragments as they stream back.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"

	"github.com/chattykathys/chattykathy/adapters/sse"
)

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	character := flag.String("character", "gandalf", "character slug to talk to")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Fatalf("creating cookie jar: %v", err)
	}
	client := &http.Client{Jar: jar}

	if err := signIn(client, *baseURL, *email, *password); err != nil {
		log.Fatalf("signing in: %v", err)
	}

	fmt.Printf("Talking to %s. Enter messages (type 'exit' to quit):\n", *character)
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		text = strings.TrimSpace(text)
		if text == "exit" {
			return
		}
		if text == "" {
			continue
		}

		final := sendTurn(client, *baseURL, *character, text)
		if final.Errored {
			fmt.Printf("\n%s\n", final.Content)
		} else {
			fmt.Println()
		}
	}
}

func signIn(client *http.Client, baseURL, email, password string) error {
	creds, _ := json.Marshal(map[string]string{"email": email, "password": password})

	login, err := client.Post(baseURL+"/api/v1/auth/login", "application/json", bytes.NewReader(creds))
	if err != nil {
		return err
	}
	login.Body.Close()
	if login.StatusCode == http.StatusOK {
		return nil
	}

	// No such account yet: try to create one.
	signup, err := client.Post(baseURL+"/api/v1/auth/signup", "application/json", bytes.NewReader(creds))
	if err != nil {
		return err
	}
	signup.Body.Close()
	if signup.StatusCode != http.StatusCreated {
		return fmt.Errorf("login failed (%d) and signup failed (%d)", login.StatusCode, signup.StatusCode)
	}
	return nil
}

// sendTurn submits one turn and streams the reply to stdout, returning
// the finalized message. Every failure path still produces exactly one
// finalized message.
func sendTurn(client *http.Client, baseURL, character, text string) sse.Final {
	body, _ := json.Marshal(map[string]string{
		"userMessage":   text,
		"characterSlug": character,
	})

	resp, err := client.Post(baseURL+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return sse.Final{Content: sse.FailureNotice, Errored: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sse.Final{Content: sse.FailureNotice, Errored: true}
	}

	reassembler := &sse.Reassembler{
		OnFragment: func(fragment string) { fmt.Print(fragment) },
	}
	return reassembler.Consume(resp.Body)
}

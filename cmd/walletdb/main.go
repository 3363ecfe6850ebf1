package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/urfave/cli/v2"
)

var (
	walletdbDataDir = btcutil.AppDataDir("walletdb", false)
	statePath       = filepath.Join(walletdbDataDir, "state.json")

	httpClient = &http.Client{Timeout: 30 * time.Second}
)

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "walletdb CLI"
	app.Usage = "Command line interface for the walletdbd daemon"
	app.Commands = append(
		app.Commands,
		&config,
		&password,
		&wallet,
		&archive,
		&syncCmd,
		&webhook,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func getState() (map[string]string, error) {
	data := map[string]string{}

	file, err := os.ReadFile(statePath)
	if err != nil {
		return nil, errors.New("get config state error: try 'config init'")
	}
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, fmt.Errorf("invalid config state: %w", err)
	}

	return data, nil
}

func setState(data map[string]string) error {
	if err := os.MkdirAll(walletdbDataDir, os.ModeDir|0755); err != nil {
		return err
	}

	currentData := map[string]string{}
	if _, err := os.Stat(statePath); err == nil {
		if currentData, err = getState(); err != nil {
			return err
		}
	}

	mergedData := merge(currentData, data)

	jsonString, err := json.Marshal(mergedData)
	if err != nil {
		return err
	}
	if err := os.WriteFile(statePath, jsonString, 0644); err != nil {
		return fmt.Errorf("writing to file: %w", err)
	}

	return nil
}

func merge(maps ...map[string]string) map[string]string {
	merge := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			merge[k] = v
		}
	}
	return merge
}

func getServerURL() (string, error) {
	state, err := getState()
	if err != nil {
		return "", err
	}
	address, ok := state["rpcserver"]
	if !ok || address == "" {
		return "", errors.New("set rpcserver with `config set rpcserver`")
	}
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	return strings.TrimSuffix(address, "/"), nil
}

// callDaemon sends the request to the daemon and returns the raw response
// body. Non 2xx responses become errors carrying the daemon message.
func callDaemon(method, path string, body interface{}) ([]byte, error) {
	serverURL, err := getServerURL()
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, serverURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errResp := struct {
			Kind  string `json:"kind"`
			Error string `json:"error"`
		}{}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("%s: %s", errResp.Kind, errResp.Error)
		}
		return nil, fmt.Errorf("daemon responded %d", resp.StatusCode)
	}

	return respBody, nil
}

func printRespJSON(resp []byte) {
	if len(resp) == 0 {
		return
	}
	var out bytes.Buffer
	if err := json.Indent(&out, resp, "", "\t"); err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}

	fmt.Println(out.String())
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[walletdb] %v\n", err)
	}
	os.Exit(1)
}

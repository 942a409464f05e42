package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nao1215/scoreboard/internal/config"
	"github.com/nao1215/scoreboard/pkg/httpclient"
	"github.com/nao1215/scoreboard/pkg/middleware"
	"github.com/urfave/cli/v2"
)

// serverFlags は稼働中のサーバーに接続するコマンド共通のフラグを生成する。
func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Value:   "http://localhost:3000",
			Usage:   "base URL of the scoreboard server",
			EnvVars: []string{"SCOREBOARD_URL"},
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "bearer token sent with each request",
			EnvVars: []string{"SCOREBOARD_TOKEN"},
		},
	}
}

// newClient はフラグからHTTPクライアントを生成する。
func newClient(c *cli.Context) *httpclient.Client {
	var opts []httpclient.Option
	if token := c.String("token"); token != "" {
		opts = append(opts, httpclient.WithBearerToken(token))
	}
	return httpclient.New(c.String("url"), opts...)
}

// printJSON はレスポンスを整形して出力する。
func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTokenCommand は開発用トークンを発行するサブコマンドを生成する。
func newTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "print a signed bearer token for development",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Value: "dev", Usage: "subject embedded in the token"},
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "signing secret (auth.secret from the configuration when empty)",
				EnvVars: []string{"JWT_SECRET", "SECRET_KEY"},
			},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
		},
		Action: func(c *cli.Context) error {
			secret := c.String("secret")
			if secret == "" {
				cfg, err := config.Load(c.String("config"))
				if err != nil {
					return fmt.Errorf("設定の読み込みに失敗: %w", err)
				}
				secret = cfg.Auth.Secret
			}
			if secret == "" {
				return cli.Exit("auth.secret is not configured", 1)
			}
			token, err := middleware.GenerateJWT(secret, c.String("subject"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

// newSubmitCommand はスコアを登録するサブコマンドを生成する。
func newSubmitCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "submit a score",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "pseudo", Required: true, Usage: "participant name"},
			&cli.Int64Flag{Name: "score", Required: true, Usage: "score value"},
		}, serverFlags()...),
		Action: func(c *cli.Context) error {
			body := map[string]any{"pseudo": c.String("pseudo"), "score": c.Int64("score")}
			var result map[string]any
			if err := newClient(c).PostJSON(c.Context, "/scores", body, &result); err != nil {
				return err
			}
			return printJSON(c, result)
		},
	}
}

// newTopCommand は上位一覧を取得するサブコマンドを生成する。
func newTopCommand() *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "list the top scores",
		Flags: append([]cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "number of scores (server default when 0)"},
		}, serverFlags()...),
		Action: func(c *cli.Context) error {
			path := "/scores"
			if limit := c.Int("limit"); limit > 0 {
				path += "?" + url.Values{"limit": []string{strconv.Itoa(limit)}}.Encode()
			}
			var result map[string]any
			if err := newClient(c).GetJSON(c.Context, path, &result); err != nil {
				return err
			}
			return printJSON(c, result)
		},
	}
}

// newRankCommand は順位指定でスコアを取得するサブコマンドを生成する。
func newRankCommand() *cli.Command {
	return &cli.Command{
		Name:      "rank",
		Usage:     "show the score at a 1-based rank",
		ArgsUsage: "RANK",
		Flags:     serverFlags(),
		Action: func(c *cli.Context) error {
			rank, err := strconv.Atoi(c.Args().First())
			if err != nil || rank <= 0 {
				return cli.Exit("RANK must be a positive integer", 1)
			}
			var result map[string]any
			if err := newClient(c).GetJSON(c.Context, "/scores/"+strconv.Itoa(rank), &result); err != nil {
				if httpclient.IsStatus(err, http.StatusNotFound) {
					return cli.Exit(fmt.Sprintf("no score at rank %d", rank), 1)
				}
				return err
			}
			return printJSON(c, result)
		},
	}
}

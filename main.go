package main

import (
	"flag"
	"fmt"
	"os"
	"wims_connector/utils"
	"wims_connector/wims"

	"github.com/ansel1/merry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func run(env utils.Env, serverAddr, configPath string, checkOnly bool) error {
	connCfg, err := LoadConnConfig(configPath)
	if err != nil {
		return merry.Wrap(err)
	}
	client, err := wims.NewClient(connCfg.ClientConfig())
	if err != nil {
		return merry.Wrap(err)
	}

	if checkOnly {
		if err := client.CheckConnection(); err != nil {
			if res, ok := wims.ResultOf(err); ok {
				for _, line := range res.Diagnostic {
					fmt.Fprintln(os.Stderr, line)
				}
			}
			return merry.Wrap(err)
		}
		log.Info().Str("url", connCfg.BaseURL).Msg("WIMS connection OK")
		return nil
	}

	cfgDir, err := utils.MakeConfigDir()
	if err != nil {
		return merry.Wrap(err)
	}
	db, err := setupDB(cfgDir)
	if err != nil {
		return merry.Wrap(err)
	}
	defer db.Close()

	return StartHTTPServer(db, client, env, connCfg.Lang, serverAddr)
}

func main() {
	env := utils.Env{Val: "prod"}
	logLevel := utils.OptionValue[zerolog.Level]{
		Options: []zerolog.Level{zerolog.TraceLevel, zerolog.DebugLevel, zerolog.InfoLevel, zerolog.WarnLevel, zerolog.ErrorLevel},
		ToStr:   func(l zerolog.Level) string { return l.String() },
	}
	logLevel.Value = &logLevel.Options[2]

	var serverAddr, configPath string
	var checkOnly bool
	flag.Var(&env, "env", "evironment, dev or prod")
	flag.Var(&logLevel, "log-level", "log level, one of: "+logLevel.JoinStrings(", "))
	flag.StringVar(&serverAddr, "addr", "127.0.0.1:9020", "HTTP server address:port")
	flag.StringVar(&configPath, "config", "", "path to wims.toml (default: in user config dir)")
	flag.BoolVar(&checkOnly, "check", false, "check WIMS connection and exit")
	flag.Parse()

	// Logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.ErrorStackMarshaler = func(err error) interface{} { return merry.Details(err) }
	zerolog.ErrorStackFieldName = "message" //TODO: https://github.com/rs/zerolog/issues/157
	zerolog.SetGlobalLevel(*logLevel.Value)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05.000"})

	if err := run(env, serverAddr, configPath, checkOnly); err != nil {
		log.Fatal().Stack().Err(err).Msg("")
	}
}

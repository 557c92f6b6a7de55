package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "TIMEREPORT_"

type Application struct {
	Database Database  `koanf:"db"`
	Redmine  Database  `koanf:"redmine"`
	Mail     Mail      `koanf:"mail"`
	Report   Report    `koanf:"report"`
	Http     Http      `koanf:"http"`
	Schedule Schedule  `koanf:"schedule"`
	Holidays []Holiday `koanf:"holidays" validate:"dive"`
}

type Database struct {
	Host   string `koanf:"host" validate:"required"`
	Port   int    `koanf:"port" validate:"required,min=1,max=65535"`
	User   string `koanf:"user" validate:"required"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name" validate:"required"`
	Schema string `koanf:"schema"`
}

// Mail selects and configures the outbound transport. Transport is one of
// smtp, gmail, amqp or console.
type Mail struct {
	Transport  string        `koanf:"transport" validate:"oneof=smtp gmail amqp console"`
	From       string        `koanf:"from" validate:"required,email"`
	Retries    int           `koanf:"retries" validate:"min=1"`
	RetryDelay time.Duration `koanf:"retrydelay"`
	Pause      time.Duration `koanf:"pause"`
	Smtp       Smtp          `koanf:"smtp"`
	Gmail      Gmail         `koanf:"gmail"`
	Amqp       Amqp          `koanf:"amqp"`
}

type Smtp struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	User string `koanf:"user"`
	Pass string `koanf:"pass"`
	TLS  bool   `koanf:"tls"`
}

type Gmail struct {
	CredentialsFile string `koanf:"credentialsfile"`
}

type Amqp struct {
	Url        string `koanf:"url"`
	Exchange   string `koanf:"exchange"`
	RoutingKey string `koanf:"routingkey"`
}

type Report struct {
	Organization string `koanf:"organization" validate:"required"`
	AttachXlsx   bool   `koanf:"attachxlsx"`
	Timezone     string `koanf:"timezone" validate:"required"`
}

type Http struct {
	Addr string `koanf:"addr"`
}

// Schedule drives the serve mode. Jobs are run once a day at Hour (local to
// Report.Timezone).
type Schedule struct {
	Enabled bool     `koanf:"enabled"`
	Hour    int      `koanf:"hour" validate:"min=0,max=23"`
	Jobs    []string `koanf:"jobs"`
}

type Holiday struct {
	Date string `koanf:"date" validate:"required,datetime=2006-01-02"`
	Name string `koanf:"name" validate:"required"`
}

func defaults() Application {
	return Application{
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "timereport",
			Name:   "timereport",
			Schema: "timereport",
		},
		Redmine: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "redmine",
			Name:   "redmine",
			Schema: "public",
		},
		Mail: Mail{
			Transport:  "smtp",
			From:       "timereport@localhost.localdomain",
			Retries:    3,
			RetryDelay: 5 * time.Second,
			Pause:      60 * time.Second,
			Smtp: Smtp{
				Host: "localhost",
				Port: 25,
			},
			Amqp: Amqp{
				Exchange:   "mail",
				RoutingKey: "mail.send",
			},
		},
		Report: Report{
			Organization: "NDTL",
			Timezone:     "America/New_York",
		},
		Http: Http{
			Addr: ":8181",
		},
		Schedule: Schedule{
			Hour: 7,
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	if err := validator.New().Struct(app); err != nil {
		return Application{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return app, nil
}

// Location resolves Report.Timezone, falling back to UTC.
func (r Report) Location() *time.Location {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		log.Warnf("unknown timezone %q, using UTC: %v", r.Timezone, err)
		return time.UTC
	}
	return loc
}

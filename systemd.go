package main

import (
	_ "embed"
	"io"
	"os"
	"text/template"
)

//go:embed netgpiod.service
var serviceEmbed string

type ServiceParams struct {
	BinaryPath string
	ConfigPath string
	User       string
}

// WriteServiceFile renders the systemd unit for the running binary.
func WriteServiceFile(w io.Writer, configPath string) error {
	tmpl, err := template.New("netgpiod.service").Parse(serviceEmbed)
	if err != nil {
		return err
	}

	path, err := os.Executable()
	if err != nil {
		return err
	}

	return tmpl.Execute(w, ServiceParams{
		BinaryPath: path,
		ConfigPath: configPath,
		User:       "root",
	})
}

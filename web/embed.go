package web

import "embed"

// TemplatesFS embeds HTML templates for server-side rendering.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the browser client's script and stylesheet.
//
//go:embed static/*
var StaticFS embed.FS

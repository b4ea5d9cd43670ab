package manifest

import (
	"bytes"
	"fmt"
	"text/template"
)

var declarationTemplate = template.Must(template.New("dts").Parse(`/* eslint-disable */
/* prettier-ignore */
// @ts-nocheck
// Generated by define-pages-json, do not edit.

type _LocationUrl =
{{- if .Routes}}{{range $i, $r := .Routes}}
  {{if $i}}| {{end}}"{{$r}}" | ` + "`" + `{{$r}}?${string}` + "`" + `{{end}}{{else}} never{{end}};

type _TabBarUrl =
{{- if .TabBar}}{{range $i, $r := .TabBar}}
  {{if $i}}| {{end}}"{{$r}}"{{end}}{{else}} never{{end}};

interface NavigateToOptions {
  url: _LocationUrl;
}
interface RedirectToOptions extends NavigateToOptions {}

interface SwitchTabOptions {
  url: _TabBarUrl;
}

type ReLaunchOptions = NavigateToOptions | SwitchTabOptions;

declare interface Uni {
  navigateTo(options: UniNamespace.NavigateToOptions & NavigateToOptions): void;
  redirectTo(options: UniNamespace.RedirectToOptions & RedirectToOptions): void;
  reLaunch(options: UniNamespace.ReLaunchOptions & ReLaunchOptions): void;
  switchTab(options: UniNamespace.SwitchTabOptions & SwitchTabOptions): void;
}
`))

type declarationData struct {
	Routes []string
	TabBar []string
}

// Routes lists every route of the manifest as an absolute URL path: pages,
// then sub-package pages prefixed with their root.
func Routes(m Manifest) []string {
	var routes []string
	seen := make(map[string]bool)
	add := func(route string) {
		if route == "/" || seen[route] {
			return
		}
		seen[route] = true
		routes = append(routes, route)
	}

	for _, p := range Pages(m) {
		if path := stringField(p, "path"); path != "" {
			add("/" + path)
		}
	}
	for _, pkg := range SubPackages(m) {
		obj, ok := pkg.(map[string]any)
		if !ok {
			continue
		}
		root := stringField(obj, "root")
		pages, _ := obj["pages"].([]any)
		for _, p := range pages {
			if path := stringField(p, "path"); path != "" {
				add("/" + joinRoute(root, path))
			}
		}
	}
	return routes
}

// TabBarRoutes lists the tab bar page paths as absolute URL paths.
func TabBarRoutes(m Manifest) []string {
	var routes []string
	for _, item := range TabBarList(m) {
		if path := stringField(item, "pagePath"); path != "" {
			routes = append(routes, "/"+path)
		}
	}
	return routes
}

// RenderDeclaration renders the route type declarations for m.
func RenderDeclaration(m Manifest) (string, error) {
	var buf bytes.Buffer
	data := declarationData{Routes: Routes(m), TabBar: TabBarRoutes(m)}
	if err := declarationTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering declaration: %w", err)
	}
	return buf.String(), nil
}

// WriteDeclaration renders and writes the declaration file.
func WriteDeclaration(path string, m Manifest) error {
	content, err := RenderDeclaration(m)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("writing declaration %s: %w", path, err)
	}
	return nil
}

func stringField(v any, key string) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := obj[key].(string)
	return s
}

func joinRoute(root, path string) string {
	if root == "" {
		return path
	}
	return root + "/" + path
}

package site

const styleSheet = `:root {
	--fg: #1f2430;
	--muted: #5e6673;
	--accent: #2563eb;
	--card: #f5f6f8;
}

body {
	margin: 0 auto;
	max-width: 720px;
	padding: 2rem 1rem 4rem;
	font-family: -apple-system, "Segoe UI", Roboto, sans-serif;
	color: var(--fg);
	line-height: 1.5;
}

a { color: var(--accent); }

h1 { margin-bottom: 0.25rem; }

.subtitle { color: var(--muted); margin-top: 0; }

.program-list { list-style: none; padding: 0; }

.program-list li {
	background: var(--card);
	border-radius: 8px;
	margin-bottom: 0.75rem;
	padding: 1rem;
}

.exercise {
	background: var(--card);
	border-radius: 8px;
	margin-bottom: 1rem;
	padding: 1rem 1.25rem;
}

.exercise h2 { margin: 0 0 0.25rem; font-size: 1.1rem; }

.dosage { color: var(--accent); font-weight: 600; margin: 0 0 0.5rem; }

.note { color: var(--muted); font-style: italic; }
`

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Exercise Programs</title>
<link rel="stylesheet" href="style.css">
</head>
<body>
<h1>Exercise Programs</h1>
<ul class="program-list">
{{- range . }}
	<li>
		<a href="{{ .Slug }}.html">{{ .ProgramName }}</a>
		<span class="subtitle">{{ .ExerciseCount }} exercise(s)</span>
	</li>
{{- end }}
</ul>
</body>
</html>
`

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{ .ProgramName }}</title>
<link rel="stylesheet" href="style.css">
</head>
<body>
<p><a href="index.html">&larr; All programs</a></p>
<h1>{{ .ProgramName }}</h1>
{{- range .Exercises }}
<div class="exercise">
	<h2>{{ .Name }}</h2>
	<p class="dosage">{{ .Dosage }}</p>
	<div class="description">{{ .Description }}</div>
	{{- if .Note }}
	<p class="note">{{ .Note }}</p>
	{{- end }}
</div>
{{- end }}
</body>
</html>
`

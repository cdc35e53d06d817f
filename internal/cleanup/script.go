package cleanup

import (
	"bytes"
	"text/template"
)

const applyScriptTemplateText = `#!/usr/bin/env bash
# Move-only cleanup for {{.Repository}} (cohort {{.Cohort}}, generated {{.GeneratedAt}}).
# Policy: {{.Policy}}
# Usage: {{.ScriptFile}} <checkout-path> [move-list]
set -euo pipefail

checkout="${1:?checkout path required}"
move_list="${2:-$(dirname "$0")/{{.MoveListFile}}}"
move_list="$(cd "$(dirname "$move_list")" && pwd)/$(basename "$move_list")"

cd "$checkout"
while IFS= read -r relative_path || [ -n "$relative_path" ]; do
  [ -z "$relative_path" ] && continue
  case "$relative_path" in
    /*|..|../*|*/..|*/../*|.git|.git/*|TRASH|TRASH/*|_TRASH|_TRASH/*)
      echo "skipped: $relative_path"
      continue
      ;;
  esac
  if [ ! -e "$relative_path" ] && [ ! -L "$relative_path" ]; then
    echo "missing: $relative_path"
    continue
  fi
  if [ -e "TRASH/$relative_path" ] || [ -L "TRASH/$relative_path" ]; then
    echo "skipped: $relative_path"
    continue
  fi
  mkdir -p "TRASH/$(dirname "$relative_path")"
  mv -- "$relative_path" "TRASH/$relative_path"
  echo "moved: $relative_path"
done < "$move_list"
`

var applyScriptTemplate = template.Must(template.New("apply").Parse(applyScriptTemplateText))

type applyScriptData struct {
	Repository   string
	Cohort       string
	GeneratedAt  string
	Policy       string
	ScriptFile   string
	MoveListFile string
}

func renderApplyScript(data applyScriptData) ([]byte, error) {
	var buffer bytes.Buffer
	if executionError := applyScriptTemplate.Execute(&buffer, data); executionError != nil {
		return nil, executionError
	}
	return buffer.Bytes(), nil
}

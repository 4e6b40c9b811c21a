package extract

// InstallCommands returns the command sequence that installs dependencies
// declared by a manifest of the given kind, with the manifest's path
// substituted where the command takes one. The second return is false for
// unknown kinds.
func InstallCommands(kind, relPath string) ([][]string, bool) {
	switch kind {
	case "requirements.txt":
		return [][]string{{"pip", "install", "-r", relPath}}, true
	case "environment.yml":
		return [][]string{{"conda", "env", "create", "-f", relPath}}, true
	case "setup.py":
		return [][]string{{"pip", "install", "-e", "."}}, true
	case "pyproject.toml":
		return [][]string{{"poetry", "install"}}, true
	case "Pipfile":
		return [][]string{{"pipenv", "install"}}, true
	case "tox.ini":
		return [][]string{{"tox"}}, true
	case "conda-requirements.txt":
		return [][]string{{"conda", "install", "-y", "--file", relPath}}, true
	case "requirements.in":
		return [][]string{{"pip-compile"}, {"pip-sync"}}, true
	}
	return nil, false
}

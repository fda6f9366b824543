// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/alpack/sandbox"
)

// Guest paths of a build.
const (
	// GuestBuildDir is where the recipe directory is mounted.
	GuestBuildDir = "/build"
	guestSrcDir   = GuestBuildDir + "/src"
	guestPkgDir   = GuestBuildDir + "/pkg"
)

// Stage names that are not recipe functions.
const (
	StageDependencies = "deps"
	StageFetch        = "fetch"
)

// Stage is one supervised step of a build.
type Stage struct {
	Name   string
	Script string

	// Root runs the stage as uid 0 in the guest.
	Root bool
}

// Plan is the ordered work derived from a recipe.
type Plan struct {
	Package      string
	Version      string
	Dependencies []string

	// RecipeDir is mounted at /build. Output lands in RecipeDir/pkg.
	RecipeDir string

	// Stages run in order. A dependency stage, when present, is first.
	Stages []Stage

	// Env is applied to every stage on top of the sandbox defaults.
	Env map[string]string
}

// PlanOptions tune plan construction.
type PlanOptions struct {
	// Static requests statically linked output.
	Static bool
}

// StaticEnv is added to every stage of a static build.
var StaticEnv = map[string]string{
	"LDFLAGS":       "-static",
	"CGO_ENABLED":   "0",
	"ALPACK_STATIC": "1",
}

// NewPlan turns a parsed recipe into stages: dependency install, source
// fetch, then each stage function the recipe defines among prepare,
// build, check, and package.
func NewPlan(recipe *Recipe, options PlanOptions) Plan {
	plan := Plan{
		Package:      recipe.Name,
		Version:      recipe.Version,
		Dependencies: recipe.Dependencies(),
		RecipeDir:    recipe.Dir,
		Env: map[string]string{
			"srcdir":   guestSrcDir,
			"pkgdir":   guestPkgDir + "/" + recipe.Name,
			"startdir": GuestBuildDir,
		},
	}
	if options.Static {
		for key, value := range StaticEnv {
			plan.Env[key] = value
		}
	}

	if len(plan.Dependencies) > 0 {
		plan.Stages = append(plan.Stages, Stage{
			Name:   StageDependencies,
			Script: dependencyScript(plan.Dependencies),
			Root:   true,
		})
	}

	recipeFile := filepath.Base(recipe.Path)
	if recipeFile == "." || recipeFile == "" {
		recipeFile = "APKBUILD"
	}
	if len(recipe.Sources) > 0 {
		plan.Stages = append(plan.Stages, Stage{
			Name:   StageFetch,
			Script: prelude(recipeFile) + fetchScript(recipe.Sources),
		})
	}
	for _, function := range stageFunctions {
		if !recipe.Defines(function) {
			continue
		}
		plan.Stages = append(plan.Stages, Stage{
			Name:   function,
			Script: prelude(recipeFile) + `cd "$builddir" 2>/dev/null || cd "$srcdir"` + "\n" + function + "\n",
		})
	}
	return plan
}

// OutputDir is the host directory the package stage writes into.
func (p Plan) OutputDir() string {
	return filepath.Join(p.RecipeDir, "pkg")
}

func dependencyScript(packages []string) string {
	quoted := make([]string, len(packages))
	for index, name := range packages {
		quoted[index] = sandbox.ShellQuote(name)
	}
	return "apk add --no-cache " + strings.Join(quoted, " ") + "\n"
}

// prelude sources the recipe inside the guest. default_prepare applies
// the recipe's *.patch sources the way abuild does.
func prelude(recipeFile string) string {
	return `set -e
default_prepare() {
	for _source in $source; do
		case "${_source%%::*}" in
		*.patch) patch -p1 -i "$srcdir/$(basename "${_source%%::*}")" ;;
		esac
	done
}
. ` + GuestBuildDir + "/" + sandbox.ShellQuote(recipeFile) + `
: "${builddir:=$srcdir/$pkgname-$pkgver}"
mkdir -p "$srcdir" "$pkgdir"
`
}

var archiveSuffixes = []string{".tar.gz", ".tgz", ".tar.xz", ".txz", ".tar.bz2", ".tbz2", ".tar.zst", ".tar"}

func isArchive(name string) bool {
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func fetchScript(sources []Source) string {
	var script strings.Builder
	for _, source := range sources {
		target := `"$srcdir"/` + sandbox.ShellQuote(source.Name)
		if source.Remote() {
			fmt.Fprintf(&script, "[ -s %s ] || wget -q -O %s %s\n", target, target, sandbox.ShellQuote(source.URL))
		} else {
			fmt.Fprintf(&script, "cp \"$startdir\"/%s %s\n", sandbox.ShellQuote(source.Name), target)
		}
		if isArchive(source.Name) {
			fmt.Fprintf(&script, "tar -xf %s -C \"$srcdir\"\n", target)
		}
	}
	return script.String()
}

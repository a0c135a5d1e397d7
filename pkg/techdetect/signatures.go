// Package techdetect infers the technologies used by a project from its
// file tree. Detection is driven by an immutable catalog of signatures
// (file globs plus content regexes) consumed by a single scoring
// algorithm, either recursively over a whole subtree or locally over the
// direct children of one directory.
package techdetect

import (
	"regexp"

	"github.com/pkg/errors"
)

// Category tags a signature with the kind of technology it detects.
type Category string

// Signature categories
const (
	CategoryLanguage   Category = "language"
	CategoryFramework  Category = "framework"
	CategoryDatabase   Category = "database"
	CategoryORM        Category = "orm"
	CategoryAI         Category = "ai"
	CategoryTesting    Category = "testing"
	CategoryDevOps     Category = "devops"
	CategoryBuild      Category = "build"
	CategoryCSS        Category = "css"
	CategoryUI         Category = "ui"
	CategoryServerless Category = "serverless"
)

// ContentRule lists the regexes searched for inside files matching Glob.
type ContentRule struct {
	Glob     string   `yaml:"glob" json:"glob"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// Signature describes how to recognise a single technology.
type Signature struct {
	Name     string        `yaml:"name" json:"name"`
	Category Category      `yaml:"category" json:"category"`
	Files    []string      `yaml:"files,omitempty" json:"files,omitempty"`
	Content  []ContentRule `yaml:"content,omitempty" json:"content,omitempty"`
	Boost    float64       `yaml:"boost,omitempty" json:"boost,omitempty"`
}

type compiledContent struct {
	glob     string
	patterns []*regexp.Regexp
}

type compiledSignature struct {
	Signature
	content []compiledContent
}

// Catalog is a compiled, immutable list of signatures. The zero value is
// an empty catalog.
type Catalog struct {
	sigs []compiledSignature
}

// NewCatalog compiles the given signatures. Signature order is preserved
// and used to break confidence ties.
func NewCatalog(sigs []Signature) (*Catalog, error) {
	c := &Catalog{sigs: make([]compiledSignature, 0, len(sigs))}
	seen := make(map[string]bool, len(sigs))

	for _, sig := range sigs {
		if sig.Name == "" {
			return nil, errors.New("signature name is required")
		}
		if seen[sig.Name] {
			return nil, errors.Errorf("duplicate signature %q", sig.Name)
		}
		seen[sig.Name] = true

		cs := compiledSignature{Signature: sig}
		for _, rule := range sig.Content {
			cc := compiledContent{glob: rule.Glob}
			for _, p := range rule.Patterns {
				re, err := regexp.Compile(p)
				if err != nil {
					return nil, errors.Wrapf(err, "invalid content pattern %q for signature %s", p, sig.Name)
				}
				cc.patterns = append(cc.patterns, re)
			}
			cs.content = append(cs.content, cc)
		}
		c.sigs = append(c.sigs, cs)
	}

	return c, nil
}

// MustCatalog is like NewCatalog but panics on invalid input.
func MustCatalog(sigs []Signature) *Catalog {
	c, err := NewCatalog(sigs)
	if err != nil {
		panic(err)
	}
	return c
}

// Signatures returns a copy of the catalog's signatures in order.
func (c *Catalog) Signatures() []Signature {
	out := make([]Signature, len(c.sigs))
	for i, s := range c.sigs {
		out[i] = s.Signature
	}
	return out
}

// Len returns the number of signatures in the catalog.
func (c *Catalog) Len() int {
	return len(c.sigs)
}

// Lookup returns the signature with the given name.
func (c *Catalog) Lookup(name string) (Signature, bool) {
	for _, s := range c.sigs {
		if s.Name == name {
			return s.Signature, true
		}
	}
	return Signature{}, false
}

// Extend returns a new catalog with extra signatures appended. A signature
// whose name already exists replaces the original in place.
func (c *Catalog) Extend(extra []Signature) (*Catalog, error) {
	merged := c.Signatures()
	index := make(map[string]int, len(merged))
	for i, s := range merged {
		index[s.Name] = i
	}

	for _, s := range extra {
		if i, ok := index[s.Name]; ok {
			merged[i] = s
			continue
		}
		index[s.Name] = len(merged)
		merged = append(merged, s)
	}

	return NewCatalog(merged)
}

func rule(glob string, patterns ...string) ContentRule {
	return ContentRule{Glob: glob, Patterns: patterns}
}

// DefaultSignatures is the built-in signature table.
var DefaultSignatures = []Signature{
	// Languages
	{Name: "python", Category: CategoryLanguage, Files: []string{"*.py", "pyproject.toml", "setup.py", "requirements.txt"}},
	{Name: "typescript", Category: CategoryLanguage, Files: []string{"*.ts", "*.tsx", "tsconfig.json"}},
	{Name: "javascript", Category: CategoryLanguage, Files: []string{"*.js", "*.jsx", "*.mjs"}},
	{Name: "php", Category: CategoryLanguage, Files: []string{"*.php", "composer.json", "composer.lock", "artisan"}},
	{Name: "go", Category: CategoryLanguage, Files: []string{"*.go", "go.mod", "go.sum"}},
	{Name: "rust", Category: CategoryLanguage, Files: []string{"*.rs", "Cargo.toml", "Cargo.lock"}},
	{Name: "c++", Category: CategoryLanguage, Files: []string{"*.cpp", "*.hpp", "*.cc", "*.h", "CMakeLists.txt"}},
	{Name: "java", Category: CategoryLanguage, Files: []string{"*.java", "pom.xml", "build.gradle"}},

	// Frontend frameworks
	{Name: "nextjs", Category: CategoryFramework, Files: []string{"next.config.js", "next.config.mjs", "next.config.ts"},
		Content: []ContentRule{rule("package.json", `"next":\s*"`)}},
	{Name: "react", Category: CategoryFramework, Content: []ContentRule{rule("package.json", `"react":\s*"`)}},
	{Name: "vue", Category: CategoryFramework, Files: []string{"*.vue"}, Content: []ContentRule{rule("package.json", `"vue":\s*"`)}},
	{Name: "svelte", Category: CategoryFramework, Files: []string{"*.svelte", "svelte.config.js"}},
	{Name: "angular", Category: CategoryFramework, Files: []string{"angular.json"}, Content: []ContentRule{rule("package.json", `"@angular/core"`)}},

	// Backend frameworks
	{Name: "laravel", Category: CategoryFramework, Files: []string{"artisan", "bootstrap/app.php"},
		Content: []ContentRule{rule("composer.json", `"laravel/framework"`, `"laravel/laravel"`)}},
	{Name: "inertia", Category: CategoryFramework,
		Content: []ContentRule{rule("composer.json", `"inertiajs/inertia-laravel"`), rule("package.json", `"@inertiajs/`)}},
	{Name: "fastapi", Category: CategoryFramework, Content: []ContentRule{rule("requirements.txt", `fastapi`), rule("pyproject.toml", `fastapi`)}},
	{Name: "django", Category: CategoryFramework, Files: []string{"manage.py"},
		Content: []ContentRule{rule("requirements.txt", `django`), rule("settings.py", `INSTALLED_APPS`)}},
	{Name: "flask", Category: CategoryFramework, Content: []ContentRule{rule("requirements.txt", `flask`), rule("pyproject.toml", `flask`)}},
	{Name: "express", Category: CategoryFramework, Content: []ContentRule{rule("package.json", `"express":\s*"`)}},
	{Name: "gin", Category: CategoryFramework, Content: []ContentRule{rule("go.mod", `github.com/gin-gonic/gin`)}},
	{Name: "actix", Category: CategoryFramework, Content: []ContentRule{rule("Cargo.toml", `actix-web`)}},

	// Databases
	{Name: "prisma", Category: CategoryDatabase, Files: []string{"prisma/schema.prisma"},
		Content: []ContentRule{rule("package.json", `"@prisma/client"`, `"prisma"`)}},
	{Name: "postgresql", Category: CategoryDatabase, Content: []ContentRule{rule("docker-compose.yml", `postgres`), rule(".env", `postgres://`, `postgresql://`), rule("*.py", `psycopg`, `asyncpg`)}},
	{Name: "mongodb", Category: CategoryDatabase, Content: []ContentRule{rule("package.json", `"mongodb"`, `"mongoose"`), rule("*.py", `pymongo`)}},
	{Name: "redis", Category: CategoryDatabase, Content: []ContentRule{rule("package.json", `"redis"`, `"ioredis"`), rule("*.py", `redis`)}},
	{Name: "surrealdb", Category: CategoryDatabase, Content: []ContentRule{rule("Cargo.toml", `surrealdb`), rule("*.py", `surrealdb`)}},
	{Name: "sqlite", Category: CategoryDatabase, Files: []string{"*.db", "*.sqlite"}, Content: []ContentRule{rule("*.py", `sqlite3`, `aiosqlite`)}},

	// ORMs
	{Name: "sqlalchemy", Category: CategoryORM, Content: []ContentRule{rule("requirements.txt", `sqlalchemy`), rule("pyproject.toml", `sqlalchemy`)}},
	{Name: "typeorm", Category: CategoryORM, Content: []ContentRule{rule("package.json", `"typeorm"`)}},
	{Name: "drizzle", Category: CategoryORM, Files: []string{"drizzle.config.ts"}, Content: []ContentRule{rule("package.json", `"drizzle-orm"`)}},

	// AI/ML
	{Name: "langchain", Category: CategoryAI, Content: []ContentRule{rule("requirements.txt", `langchain`), rule("pyproject.toml", `langchain`)}},
	{Name: "openai", Category: CategoryAI, Content: []ContentRule{rule("package.json", `"openai"`), rule("requirements.txt", `openai`)}},
	{Name: "anthropic", Category: CategoryAI, Content: []ContentRule{rule("package.json", `"@anthropic-ai/sdk"`), rule("requirements.txt", `anthropic`)}},
	{Name: "huggingface", Category: CategoryAI,
		Content: []ContentRule{rule("requirements.txt", `transformers`, `huggingface`), rule("pyproject.toml", `transformers`)}},

	// Testing
	{Name: "pytest", Category: CategoryTesting, Files: []string{"pytest.ini", "conftest.py"}, Content: []ContentRule{rule("pyproject.toml", `pytest`)}},
	{Name: "phpunit", Category: CategoryTesting, Files: []string{"phpunit.xml", "phpunit.xml.dist"},
		Content: []ContentRule{rule("composer.json", `"phpunit/phpunit"`)}},
	{Name: "jest", Category: CategoryTesting, Files: []string{"jest.config.js", "jest.config.ts"}, Content: []ContentRule{rule("package.json", `"jest"`)}},
	{Name: "vitest", Category: CategoryTesting, Files: []string{"vitest.config.ts"}, Content: []ContentRule{rule("package.json", `"vitest"`)}},
	{Name: "playwright", Category: CategoryTesting, Files: []string{"playwright.config.ts"}, Content: []ContentRule{rule("package.json", `"@playwright/test"`)}},

	// DevOps
	{Name: "docker", Category: CategoryDevOps, Files: []string{"Dockerfile", "docker-compose.yml", "docker-compose.yaml"}},
	{Name: "kubernetes", Category: CategoryDevOps, Files: []string{"*.yaml", "*.yml"},
		Content: []ContentRule{rule("*.yaml", `kind:\s*Deployment`, `kind:\s*Service`)}},
	{Name: "terraform", Category: CategoryDevOps, Files: []string{"*.tf", "terraform.tfstate"}},
	{Name: "github-actions", Category: CategoryDevOps, Files: []string{".github/workflows/*.yml", ".github/workflows/*.yaml"}},

	// Build tools
	{Name: "webpack", Category: CategoryBuild, Files: []string{"webpack.config.js"}, Content: []ContentRule{rule("package.json", `"webpack"`)}},
	{Name: "vite", Category: CategoryBuild, Files: []string{"vite.config.ts", "vite.config.js"}, Content: []ContentRule{rule("package.json", `"vite"`)}},
	{Name: "turbo", Category: CategoryBuild, Files: []string{"turbo.json"}, Content: []ContentRule{rule("package.json", `"turbo"`)}},

	// CSS frameworks
	{Name: "tailwind", Category: CategoryCSS, Files: []string{"tailwind.config.js", "tailwind.config.ts"},
		Content: []ContentRule{rule("package.json", `"tailwindcss"`, `"@tailwindcss/`)}},

	// UI component libraries
	{Name: "shadcn", Category: CategoryUI, Files: []string{"components.json"}, Content: []ContentRule{rule("package.json", `"@radix-ui/`, `"class-variance-authority"`, `"clsx"`), rule("components.json", `"style":\s*"`, `"tailwind":\s*\{`)}},

	// Serverless
	{Name: "vercel", Category: CategoryServerless, Files: []string{"vercel.json"}, Content: []ContentRule{rule("package.json", `"@vercel/`)}},
	{Name: "aws-lambda", Category: CategoryServerless, Files: []string{"serverless.yml", "template.yaml"},
		Content: []ContentRule{rule("*.py", `aws_lambda_powertools`)}},
}

// DefaultCatalog returns the compiled built-in catalog.
func DefaultCatalog() *Catalog {
	return MustCatalog(DefaultSignatures)
}

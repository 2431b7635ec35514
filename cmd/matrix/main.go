// Erzeugt eine LaTeX-Visualisierung der HotCRP-Review-Präferenzen,
// optional mit eingefärbter Zuweisung:
//
//	matrix allprefs.csv > matrix.tex
//	matrix allprefs.csv pcassignment.csv > matrix.tex
package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"regexp"
	"sort"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"pc-assign/models"
	"pc-assign/services"
)

const latexHeader = `\documentclass{standalone}

\usepackage[table]{xcolor}
\usepackage{array,booktabs}
\usepackage{graphicx}
\usepackage{truncate}
\usepackage{soul}
\usepackage{eqparbox}
\usepackage[utf8]{inputenc}

\newif\ifcolor
`

const latexDefs = `\ifcolor
\definecolor{MyGreen-hsb}{hsb}{0.34065,1,0.91}
\newcommand{\rate}[2]{\ifnum#1=-100%
\color{red!50!black}#2%
\else\ifnum#1=100%
\color{MyGreen-hsb!50!black}#2%
\else%
\color{MyGreen-hsb!#1!red!67!black}#2%
\fi\fi}
\newcommand{\rateA}[2]{\color{black}%
\ifnum#1=-100%
\cellcolor{red!50!black}#2%
\else\ifnum#1=100%
\cellcolor{MyGreen-hsb!50!black}#2%
\else%
\cellcolor{MyGreen-hsb!#1!red}#2%
\fi\fi}
\else
\newcommand{\rate}[2]{\ifnum#1=-100%
\color{black!25}#2%
\else\ifnum#1=100%
\color{black}#2%
\else%
\color{black!#1!white!75}#2%
\fi\fi}
\newcommand{\rateA}[2]{\color{black}%
\ifnum#1=-100%
\cellcolor{black!25}#2%
\else\ifnum#1=100%
\cellcolor{black!75}#2%
\else%
\cellcolor{black!#1!white!75}#2%
\fi\fi}
\newcommand{\TrateA}{\PrateA}
\fi
\def\Prate{\bfseries\rate}
\def\Trate{\itshape\rate}
\def\PrateA{\bfseries\rateA}
\def\TrateA{\itshape\rateA}

\newcommand*\rot{\normalsize\color{black}\rotatebox{90}}
\newcommand*\trunc{\small\truncate{12cm}}
\newcommand{\pp}[1]{\eqmakebox[pp][l]{{\color{black!50} (#1p)}}}

\setlength{\tabcolsep}{1pt}%
\setlength\extrarowheight{5pt}%
\newcolumntype{s}{>{\footnotesize\color{black!50}}c}

\begin{document}
\sffamily
\begin{tabular}{|l*{99}{|s}|}
\hline
`

var latexSpecials = regexp.MustCompile(`[&%$#_{}~^\\<>]`)

// latexEncode maskiert LaTeX-Sonderzeichen in Titeln und Namen.
func latexEncode(text string) string {
	repl := map[string]string{
		"&":  `\&`,
		"%":  `\%`,
		"$":  `\$`,
		"#":  `\#`,
		"_":  `\_`,
		"{":  `\{`,
		"}":  `\}`,
		"~":  `\textasciitilde{}`,
		"^":  `\^{}`,
		"\\": `\textbackslash{}`,
		"<":  `\textless{}`,
		">":  `\textgreater{}`,
	}
	return latexSpecials.ReplaceAllStringFunc(text, func(m string) string {
		return repl[m]
	})
}

func main() {
	var (
		black   = pflag.BoolP("black", "b", false, "Schwarz-Weiß-Ausgabe")
		scale   = pflag.BoolP("scale", "s", false, "Präferenzen pro Reviewer anhand beobachteter min/max skalieren (sonst -20/20)")
		order   = pflag.BoolP("order", "o", false, "Papers und Reviewer so sortieren, dass hohe Scores auf der Diagonale liegen")
		lengths = pflag.StringP("lengths", "l", "", "Seitenzahlen aus CSV lesen")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] allprefs.csv [pcassignment.csv]\n\nOptions:\n%s",
			os.Args[0], pflag.CommandLine.FlagUsages())
	}
	pflag.Parse()

	if pflag.NArg() < 1 || pflag.NArg() > 2 {
		fmt.Fprintln(os.Stderr, "Error: wrong number of arguments")
		pflag.Usage()
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	loader := services.NewLoader(logger)
	store, err := loader.LoadPreferencesFile(pflag.Arg(0))
	if err != nil {
		logger.Fatal("Präferenzen konnten nicht geladen werden", zap.Error(err))
	}
	if *lengths != "" {
		if err := loader.LoadLengthsFile(store, *lengths); err != nil {
			logger.Fatal("Lengths-CSV konnte nicht geladen werden", zap.Error(err))
		}
	}

	assigned := map[string]map[string]bool{}
	if pflag.NArg() == 2 {
		assigned, err = services.ReadAssignmentsFile(pflag.Arg(1))
		if err != nil {
			logger.Fatal("Assignment-CSV konnte nicht geladen werden", zap.Error(err))
		}
	}

	normalizer := services.NewScoreNormalizer(logger)
	norm, err := normalizer.Apply(store, *scale, -20, 20)
	if err != nil {
		logger.Fatal("Normalisierung fehlgeschlagen", zap.Error(err))
	}
	// Matrix arbeitet mit ganzzahligen Prozent-Scores 0..100
	scaled := map[string]map[string]int{}
	for pk, m := range norm {
		scaled[pk] = map[string]int{}
		for rk, v := range m {
			scaled[pk][rk] = int(100 * v)
		}
	}

	papers, reviewers := store.Papers, store.Reviewers
	if *order {
		papers = orderPapers(papers, reviewers, scaled)
		reviewers = orderReviewers(papers, reviewers, scaled)
	}

	render(store, papers, reviewers, scaled, assigned, *black, *lengths != "")
}

// render schreibt das komplette LaTeX-Dokument nach stdout.
func render(store *services.PrefStore, papers []*models.Paper, reviewers []*models.Reviewer,
	scaled map[string]map[string]int, assigned map[string]map[string]bool, black, withPages bool) {

	fmt.Print(latexHeader)
	if black {
		fmt.Println(`\colorfalse`)
	} else {
		fmt.Println(`\colortrue`)
	}
	fmt.Print(latexDefs)

	// Kopfzeile mit rotierten Reviewer-Namen, optional mit Summe der
	// zugewiesenen Seiten
	for _, r := range reviewers {
		pages := ""
		if withPages {
			total := 0
			for _, p := range papers {
				if assigned[p.Key][r.Email] {
					total += p.NumPages
				}
			}
			pages = fmt.Sprintf(`\pp{%d} `, total)
		}
		fmt.Printf(` & \rot{%s%s}`, pages, latexEncode(r.Name))
	}
	fmt.Println(`\\ \hline`)

	for _, p := range papers {
		pages := ""
		if withPages {
			pages = fmt.Sprintf(`\pp{%d} `, p.NumPages)
		}
		fmt.Printf(`\eqmakebox[nn][l]{%s.} \trunc{%s%s}`, p.Key, pages, latexEncode(p.Title))
		for _, r := range reviewers {
			fmt.Printf(" & %s", cell(store, scaled, assigned, p, r))
		}
		fmt.Printf(" & %s \\\\ \\hline\n", p.Key)
	}

	fmt.Println(`\end{tabular}`)
	fmt.Println()
	fmt.Println(`\end{document}`)
}

// cell rendert eine Matrixzelle: Skala-Farbe, Typ-Marker (T/P/C) und
// A-Variante für zugewiesene Paare.
func cell(store *services.PrefStore, scaled map[string]map[string]int,
	assigned map[string]map[string]bool, p *models.Paper, r *models.Reviewer) string {

	a := ""
	if assigned[p.Key][r.Email] {
		a = "A"
	}

	pref := store.Pref(p.Key, r.Key)
	switch pref.Kind {
	case models.PrefUnset:
		return fmt.Sprintf(`\Prate%s{50}{?}`, a)
	case models.PrefConflict:
		return fmt.Sprintf(`\Prate%s{-100}{C}`, a)
	}

	marker := "P"
	if pref.FromTopic {
		marker = "T"
	}
	return fmt.Sprintf(`\%srate%s{%d}{%s%d}`, marker, a, scaled[p.Key][r.Key], marker, pref.Score)
}

// paperDist misst die Unähnlichkeit zweier Papers über die skalierten
// Scores gemeinsamer Reviewer. Ohne gemeinsame Reviewer gilt maximale
// Distanz.
func paperDist(scaled map[string]map[string]int, a, b string) float64 {
	s, t := 0.0, 0
	for rk, va := range scaled[a] {
		if vb, ok := scaled[b][rk]; ok {
			d := float64(va - vb)
			s += d * d
			t++
		}
	}
	if t == 0 {
		return math.MaxFloat64
	}
	return math.Sqrt(s) / math.Sqrt(float64(t))
}

// clusterDist ist das geometrische Mittel aller paarweisen Distanzen
// zweier Cluster.
func clusterDist(scaled map[string]map[string]int, dist map[[2]string]float64, l1, l2 []string) float64 {
	p, t := 1.0, 0
	for _, a := range l1 {
		for _, b := range l2 {
			key := [2]string{a, b}
			d, ok := dist[key]
			if !ok {
				d = paperDist(scaled, a, b)
				dist[key] = d
				dist[[2]string{b, a}] = d
			}
			p *= d
			t++
		}
	}
	return math.Pow(p, 1/float64(t))
}

// orderPapers gruppiert ähnliche Papers durch gieriges Verschmelzen
// der jeweils nächsten Cluster.
func orderPapers(papers []*models.Paper, reviewers []*models.Reviewer, scaled map[string]map[string]int) []*models.Paper {
	byKey := map[string]*models.Paper{}
	clusters := make([][]string, 0, len(papers))
	for _, p := range papers {
		byKey[p.Key] = p
		clusters = append(clusters, []string{p.Key})
	}
	dist := map[[2]string]float64{}

	for len(clusters) > 1 {
		bi, bj := 0, 1
		best := clusterDist(scaled, dist, clusters[bi], clusters[bj])
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if d := clusterDist(scaled, dist, clusters[i], clusters[j]); d < best {
					best, bi, bj = d, i, j
				}
			}
		}
		merged := append(append([]string{}, clusters[bi]...), clusters[bj]...)
		next := make([][]string, 0, len(clusters)-1)
		next = append(next, clusters[:bi]...)
		next = append(next, merged)
		next = append(next, clusters[bi+1:bj]...)
		next = append(next, clusters[bj+1:]...)
		clusters = next
	}

	ordered := make([]*models.Paper, 0, len(papers))
	for _, key := range clusters[0] {
		ordered = append(ordered, byKey[key])
	}
	return ordered
}

// orderReviewers sortiert die Reviewer nach Affinität zur
// Paper-Reihenfolge (gewichtete mittlere Position ihrer Scores).
func orderReviewers(papers []*models.Paper, reviewers []*models.Reviewer, scaled map[string]map[string]int) []*models.Reviewer {
	affinity := func(r *models.Reviewer) float64 {
		s, t := 0.0, 0.0
		for i, p := range papers {
			if v, ok := scaled[p.Key][r.Key]; ok {
				s += float64(v) * float64(i)
				t += float64(v)
			}
		}
		if t > 0 {
			return s / t
		}
		return -1
	}

	ordered := append([]*models.Reviewer{}, reviewers...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return affinity(ordered[i]) < affinity(ordered[j])
	})
	return ordered
}

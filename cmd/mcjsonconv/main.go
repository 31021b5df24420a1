package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/miniscene/mcanim/converter"
	"github.com/miniscene/mcanim/mcjson"
	"github.com/miniscene/mcanim/scene"
)

func defaultOutputFile(input string) string {
	ext := strings.ToLower(filepath.Ext(input))
	base := input[0 : len(input)-len(ext)]
	if ext == ".yaml" || ext == ".yml" {
		return base + ".json"
	} else if ext == ".json" {
		return base + ".yaml"
	}
	return input + ".json"
}

func parseFormat(s string) (converter.TransformFormat, error) {
	switch strings.ToUpper(s) {
	case "ATTR", "ATTRIBUTES":
		return converter.FormatAttributes, nil
	case "MAT", "MATRIX":
		return converter.FormatMatrix, nil
	}
	return "", fmt.Errorf("unknown transform format: %v (want ATTR or MAT)", s)
}

func exportScene(input, output, batchDir string, opts *converter.ExportOptions, fps float64) error {
	s, err := scene.LoadFile(input)
	if err != nil {
		return err
	}
	if fps > 0 {
		s.FPS = fps
	}

	if batchDir != "" {
		res, err := converter.ExportActionBatch(s, batchDir, opts)
		if res != nil {
			log.Printf("exported: %d, skipped: %d, errors: %d", res.Exported, res.Skipped, len(res.Errors))
		}
		return err
	}

	res, err := converter.ExportFile(s, output, opts)
	if res != nil {
		for _, w := range res.Warnings {
			log.Println("warning:", w)
		}
	}
	return err
}

func importScene(input, output string) error {
	s := scene.NewScene()
	res, err := converter.ImportFile(s, input)
	if res != nil {
		for _, w := range res.Warnings {
			log.Println("warning:", w)
		}
	}
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(output))
	if ext == ".glb" {
		return converter.SaveGLB(s, output)
	}
	return scene.SaveFile(output, s)
}

func optimizeDocument(input, output string) error {
	doc, err := mcjson.ParseFile(input)
	if err != nil {
		return err
	}
	removed := converter.OptimizeKeyframes(doc.Animation)
	if doc.Camera != nil {
		removed += converter.OptimizeCameraTrack(doc.Camera)
	}
	log.Printf("removed %d redundant keyframe(s)", removed)
	return mcjson.WriteFile(output, doc)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] input.yaml [output.json]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [options] input.json [output.yaml|output.glb|output.json]\n", os.Args[0])
		flag.PrintDefaults()
	}
	mesh := flag.Bool("mesh", true, "export mesh")
	armature := flag.Bool("armature", true, "export armature")
	anim := flag.Bool("anim", true, "export animation")
	camera := flag.Bool("camera", false, "export camera track")
	modifiers := flag.Bool("modifiers", false, "apply deform modifiers to the mesh")
	visible := flag.Bool("visible", false, "export only visible bones")
	bake := flag.Bool("bake", false, "sample every frame of the action range")
	optimize := flag.Bool("optimize", false, "collapse runs of identical keyframes")
	animFmt := flag.String("format", "ATTR", "animation transform format (ATTR|MAT)")
	armFmt := flag.String("armformat", "MAT", "armature transform format (ATTR|MAT)")
	batch := flag.String("batch", "", "export one file per action into this directory")
	fps := flag.Float64("fps", 0, "override scene fps")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return
	}
	input := flag.Arg(0)
	output := ""
	if flag.NArg() >= 2 {
		output = flag.Arg(1)
	} else {
		output = defaultOutputFile(input)
	}

	animationFormat, err := parseFormat(*animFmt)
	if err != nil {
		log.Fatal(err)
	}
	armatureFormat, err := parseFormat(*armFmt)
	if err != nil {
		log.Fatal(err)
	}

	inputExt := strings.ToLower(filepath.Ext(input))
	switch inputExt {
	case ".yaml", ".yml":
		opts := &converter.ExportOptions{
			Mesh:              *mesh,
			Armature:          *armature,
			Animation:         *anim,
			Camera:            *camera,
			ApplyModifiers:    *modifiers,
			ArmatureFormat:    armatureFormat,
			AnimationFormat:   animationFormat,
			VisibleBonesOnly:  *visible,
			OptimizeKeyframes: *optimize,
			BakeAnimation:     *bake,
		}
		err = exportScene(input, output, *batch, opts, *fps)
	case ".json":
		if strings.ToLower(filepath.Ext(output)) == ".json" {
			err = optimizeDocument(input, output)
		} else {
			err = importScene(input, output)
		}
	default:
		err = fmt.Errorf("unsupported input type: %v", inputExt)
	}
	if err != nil {
		log.Fatal(err)
	}
}

package huffrle_test

import (
	"bytes"
	"fmt"

	"github.com/seiflotfy/huffrle"
)

func Example() {
	a, err := huffrle.Compress("hello")
	if err != nil {
		panic(err)
	}
	fmt.Println(a.Payload())
	fmt.Println(a.Stats.OriginalBits, a.Stats.HuffmanBits, a.Stats.CompressedBits)

	text, err := huffrle.Decompress(a)
	if err != nil {
		panic(err)
	}
	fmt.Println(text)
	// Output:
	// 1:0,1:1,2:0,5:1,1:0
	// 40 10 13
	// hello
}

func ExampleArtifact_WriteTo() {
	a, err := huffrle.Compress("aaaaaa")
	if err != nil {
		panic(err)
	}
	var buf bytes.Buffer
	if _, err := a.WriteTo(&buf); err != nil {
		panic(err)
	}

	var loaded huffrle.Artifact
	if _, err := loaded.ReadFrom(&buf); err != nil {
		panic(err)
	}
	text, err := huffrle.Decompress(&loaded)
	if err != nil {
		panic(err)
	}
	fmt.Println(loaded.Payload(), text)
	// Output: 6:0 aaaaaa
}

func ExampleTrainModel() {
	model, err := huffrle.TrainModel([]string{"hello", "world"})
	if err != nil {
		panic(err)
	}
	a, err := model.Encode("hold")
	if err != nil {
		panic(err)
	}
	text, err := huffrle.Decompress(a)
	if err != nil {
		panic(err)
	}
	fmt.Println(text)

	_, err = model.Encode("zebra")
	fmt.Println(err != nil)
	// Output:
	// hold
	// true
}

func ExampleLoadArtifact() {
	a, err := huffrle.LoadArtifact(
		bytes.NewBufferString("1:0,1:1,2:0,5:1,1:0\n"),
		bytes.NewBufferString("\"e\"\t00\n\"h\"\t01\n\"l\"\t11\n\"o\"\t10\n"),
	)
	if err != nil {
		panic(err)
	}
	text, err := huffrle.Decompress(a)
	if err != nil {
		panic(err)
	}
	fmt.Println(text)
	// Output: hello
}

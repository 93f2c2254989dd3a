// Package urlpdf converts lists of web pages into PDF files, one page per
// output file.
//
// A [Converter] owns a [render.Renderer] and processes a [Request] on a
// single background worker. Start validates the request and returns a
// [Run]; progress arrives as [Event] values in input order:
//
//	r, err := render.Select(ctx, "", render.Settings{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	c := urlpdf.NewConverter(r)
//	run, err := c.Start(ctx, urlpdf.Request{InputPath: "urls.txt", OutputDir: "out"})
//	if err != nil {
//	    log.Fatal(err) // *urlpdf.ConfigError
//	}
//	for ev := range run.Events() {
//	    fmt.Println(ev)
//	}
//	sum, err := run.Wait()
//	fmt.Println(sum) // "12/12 completed"
//
// Output names come from [DeriveOutputName]. Course-code requests build
// their URLs with [CourseURL].
//
// [Run.Stop] asks the worker to stop before the next item. Cancelling the
// context given to Start also interrupts the item in flight.
package urlpdf

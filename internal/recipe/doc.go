// Package recipe describes how a Spring Boot service is packaged.
//
// A [Recipe] carries every knob of the two-stage pipeline: the builder image
// and the order in which inputs are staged into it, the Gradle invocation,
// the explicit JDK module list for the trimmed runtime, the runtime base
// image, the non-privileged identity, and the declared surface of the final
// image (environment, port, entrypoint).
//
// [Default] returns the stock recipe. Project and user recipe files are YAML
// documents that override individual fields of the default:
//
//	r, err := recipe.Load(recipe.Default(), "bootpack.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := r.Validate(); err != nil {
//	    return err
//	}
package recipe
